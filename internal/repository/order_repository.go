package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"medinexa/internal/domain"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order for this payment already exists")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Insert(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `
	seq, id, user_id, user_email, user_name, product, patient_info, intake_answers,
	payment_id, payment_status, payment_date, status, idempotency_key, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order                         domain.Order
		product, patient, answersJSON []byte
	)
	err := row.Scan(
		&order.StorageID,
		&order.ID,
		&order.UserID,
		&order.UserEmail,
		&order.UserName,
		&product,
		&patient,
		&answersJSON,
		&order.Payment.ID,
		&order.Payment.Status,
		&order.Payment.Date,
		&order.Status,
		&order.IdempotencyKey,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(product, &order.Product); err != nil {
		return nil, fmt.Errorf("failed to decode product snapshot: %w", err)
	}
	if err := json.Unmarshal(patient, &order.PatientInfo); err != nil {
		return nil, fmt.Errorf("failed to decode patient snapshot: %w", err)
	}
	if err := json.Unmarshal(answersJSON, &order.IntakeAnswers); err != nil {
		return nil, fmt.Errorf("failed to decode intake answers: %w", err)
	}
	return &order, nil
}

// Insert stores a new order. A second order for the same idempotency key is
// rejected with ErrOrderAlreadyExists.
func (r *orderRepository) Insert(ctx context.Context, order *domain.Order) error {
	product, err := json.Marshal(order.Product)
	if err != nil {
		return fmt.Errorf("failed to encode product snapshot: %w", err)
	}
	patient, err := json.Marshal(order.PatientInfo)
	if err != nil {
		return fmt.Errorf("failed to encode patient snapshot: %w", err)
	}
	answers := order.IntakeAnswers
	if answers == nil {
		answers = domain.Answers{}
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to encode intake answers: %w", err)
	}

	query := `
		INSERT INTO orders (id, user_id, user_email, user_name, product, patient_info, intake_answers,
			payment_id, payment_status, payment_date, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING seq, created_at, updated_at
	`

	err = r.db.QueryRowContext(
		ctx,
		query,
		order.ID,
		order.UserID,
		order.UserEmail,
		order.UserName,
		product,
		patient,
		answersJSON,
		order.Payment.ID,
		order.Payment.Status,
		order.Payment.Date,
		order.Status,
		order.IdempotencyKey,
	).Scan(&order.StorageID, &order.CreatedAt, &order.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderAlreadyExists
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

// FindByID resolves an order by its public identifier, falling back to the
// storage sequence number when the identifier is numeric
func (r *orderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	seq, convErr := strconv.ParseInt(id, 10, 64)
	if convErr != nil {
		return nil, ErrOrderNotFound
	}

	query = `SELECT ` + orderColumns + ` FROM orders WHERE seq = $1`
	order, err = scanOrder(r.db.QueryRowContext(ctx, query, seq))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by storage id: %w", err)
	}

	return order, nil
}

func (r *orderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE idempotency_key = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by idempotency key: %w", err)
	}

	return order, nil
}

// UpdateStatus overwrites only the status column; snapshots are untouched
func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE orders
		SET status = $1
		WHERE seq = $2
		RETURNING ` + orderColumns

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, status, existing.StorageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	return order, nil
}

// ListAll returns every order, newest first
func (r *orderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, seq DESC`
	return r.list(ctx, query)
}

// ListByUser returns the orders of one user, newest first
func (r *orderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, seq DESC`
	return r.list(ctx, query, userID)
}

func (r *orderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}
