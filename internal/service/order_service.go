package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"medinexa/internal/domain"
	"medinexa/internal/events"
	"medinexa/internal/repository"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	orderIDPrefix = "ORD-"
	revenueWindow = 30 * 24 * time.Hour
)

var (
	ErrNotEligible       = errors.New("no eligible medication for this intake")
	ErrMissingPaymentKey = errors.New("payment idempotency key is required")
)

// CreateOrderInput carries the snapshots frozen into a new order
type CreateOrderInput struct {
	PatientInfo    domain.PatientInfo
	Answers        domain.Answers
	Recommendation domain.Recommendation
	Payment        domain.PaymentRecord
	IdempotencyKey string
}

// IntakeSummary is the intake snapshot of the actor's most recent order
type IntakeSummary struct {
	OrderID     string             `json:"orderId"`
	PatientInfo domain.PatientInfo `json:"patientInfo"`
	Answers     domain.Answers     `json:"intakeAnswers"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// DailyCount is one point of the orders-per-day trend
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// OrderStats aggregates the admin dashboard figures
type OrderStats struct {
	TotalOrders            int                        `json:"totalOrders"`
	PendingReview          int                        `json:"pendingReview"`
	RevenueLast30Days      decimal.Decimal            `json:"revenueLast30Days"`
	UniqueUsers            int                        `json:"uniqueUsers"`
	StatusDistribution     map[domain.OrderStatus]int `json:"statusDistribution"`
	MedicationDistribution map[string]int             `json:"medicationDistribution"`
	OrdersPerDay           []DailyCount               `json:"ordersPerDay"`
}

// OrderService is the order lifecycle controller
type OrderService interface {
	CreateOrder(ctx context.Context, actor *domain.Actor, input CreateOrderInput) (*domain.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	TransitionStatus(ctx context.Context, actor *domain.Actor, orderID string, status domain.OrderStatus) (*domain.Order, error)
	GetOrder(ctx context.Context, actor *domain.Actor, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, actor *domain.Actor) ([]domain.Order, error)
	IntakeSummary(ctx context.Context, actor *domain.Actor) (*IntakeSummary, error)
	Stats(ctx context.Context, actor *domain.Actor) (*OrderStats, error)
}

type orderService struct {
	orderRepo repository.OrderRepository
	policy    TransitionPolicy
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orderRepo repository.OrderRepository,
	policy TransitionPolicy,
	publisher events.Publisher,
	logger *zap.Logger,
) OrderService {
	if policy == nil {
		policy = PermissivePolicy{}
	}
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	return &orderService{
		orderRepo: orderRepo,
		policy:    policy,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func newOrderID() string {
	return orderIDPrefix + strings.ToUpper(uuid.NewString()[:8])
}

// CreateOrder places an order in pending_review. A repeated call with the same
// idempotency key returns the order created by the first call.
func (s *orderService) CreateOrder(ctx context.Context, actor *domain.Actor, input CreateOrderInput) (*domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if input.IdempotencyKey == "" {
		return nil, ErrMissingPaymentKey
	}
	if !input.Recommendation.Eligible() {
		return nil, ErrNotEligible
	}

	product := input.Recommendation.Product
	order := &domain.Order{
		ID:        newOrderID(),
		UserID:    actor.ID,
		UserEmail: actor.Email,
		UserName:  actor.Name,
		Product: domain.ProductSnapshot{
			ID:     product.ID,
			Name:   product.Name,
			Price:  product.Price,
			Slug:   product.Slug,
			Reason: input.Recommendation.Reason,
		},
		PatientInfo:    input.PatientInfo,
		IntakeAnswers:  input.Answers.Clone(),
		Payment:        input.Payment,
		Status:         domain.OrderStatusPendingReview,
		IdempotencyKey: input.IdempotencyKey,
	}

	if err := s.orderRepo.Insert(ctx, order); err != nil {
		if errors.Is(err, repository.ErrOrderAlreadyExists) {
			existing, findErr := s.orderRepo.FindByIdempotencyKey(ctx, input.IdempotencyKey)
			if findErr != nil {
				return nil, fmt.Errorf("failed to load existing order: %w", findErr)
			}
			s.logger.Info("Duplicate order submission resolved to existing order",
				zap.String("order_id", existing.ID),
				zap.String("user_id", actor.ID),
			)
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("product", order.Product.Slug),
	)
	s.publish(ctx, events.OrderEvent{
		Type:    events.OrderCreated,
		OrderID: order.ID,
		UserID:  order.UserID,
		Status:  order.Status,
		ActorID: actor.ID,
	})

	return order, nil
}

func (s *orderService) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	order, err := s.orderRepo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return order, nil
}

// TransitionStatus moves an order to status. Admin only.
func (s *orderService) TransitionStatus(ctx context.Context, actor *domain.Actor, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	current, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	if err := s.policy.Allow(current.Status, status); err != nil {
		return nil, err
	}

	updated, err := s.orderRepo.UpdateStatus(ctx, current.ID, status)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	s.logger.Info("Order status changed",
		zap.String("order_id", updated.ID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(updated.Status)),
		zap.String("actor_id", actor.ID),
	)
	s.publish(ctx, events.OrderEvent{
		Type:           events.OrderStatusChanged,
		OrderID:        updated.ID,
		UserID:         updated.UserID,
		Status:         updated.Status,
		PreviousStatus: current.Status,
		ActorID:        actor.ID,
	})

	return updated, nil
}

// GetOrder returns an order to its owner or to an administrator. Orders owned
// by someone else are reported as not found.
func (s *orderService) GetOrder(ctx context.Context, actor *domain.Actor, orderID string) (*domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	if !actor.CanRead(order.UserID) {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns the actor's orders newest first, or every order for an administrator
func (s *orderService) ListOrders(ctx context.Context, actor *domain.Actor) ([]domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var (
		orders []domain.Order
		err    error
	)
	if actor.IsAdmin() {
		orders, err = s.orderRepo.ListAll(ctx)
	} else {
		orders, err = s.orderRepo.ListByUser(ctx, actor.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *orderService) IntakeSummary(ctx context.Context, actor *domain.Actor) (*IntakeSummary, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	orders, err := s.orderRepo.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, repository.ErrOrderNotFound
	}

	latest := orders[0]
	return &IntakeSummary{
		OrderID:     latest.ID,
		PatientInfo: latest.PatientInfo,
		Answers:     latest.IntakeAnswers,
		CreatedAt:   latest.CreatedAt,
	}, nil
}

// Stats computes the admin dashboard aggregates. Admin only.
func (s *orderService) Stats(ctx context.Context, actor *domain.Actor) (*OrderStats, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	orders, err := s.orderRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return computeStats(orders, s.now()), nil
}

func computeStats(orders []domain.Order, now time.Time) *OrderStats {
	stats := &OrderStats{
		TotalOrders:            len(orders),
		RevenueLast30Days:      decimal.Zero,
		StatusDistribution:     make(map[domain.OrderStatus]int, len(domain.OrderStatuses)),
		MedicationDistribution: lo.CountValuesBy(orders, func(o domain.Order) string { return o.Product.Name }),
		OrdersPerDay:           []DailyCount{},
	}
	for _, status := range domain.OrderStatuses {
		stats.StatusDistribution[status] = 0
	}

	cutoff := now.Add(-revenueWindow)
	perDay := map[string]int{}
	for _, o := range orders {
		stats.StatusDistribution[o.Status]++
		if o.CreatedAt.After(cutoff) {
			stats.RevenueLast30Days = stats.RevenueLast30Days.Add(o.Product.Price)
		}
		perDay[o.CreatedAt.UTC().Format(time.DateOnly)]++
	}
	stats.PendingReview = stats.StatusDistribution[domain.OrderStatusPendingReview]
	stats.UniqueUsers = len(lo.UniqBy(orders, func(o domain.Order) string { return o.UserID }))

	days := lo.Keys(perDay)
	sort.Strings(days)
	for _, day := range days {
		stats.OrdersPerDay = append(stats.OrdersPerDay, DailyCount{Date: day, Count: perDay[day]})
	}
	return stats
}

// publish never fails the caller; the order change is already persisted
func (s *orderService) publish(ctx context.Context, event events.OrderEvent) {
	event.OccurredAt = s.now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("type", string(event.Type)),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}
