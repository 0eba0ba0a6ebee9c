package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"medinexa/internal/domain"
	"medinexa/internal/intake"
	"medinexa/internal/repository"

	"go.uber.org/zap"
)

var ErrPaymentMismatch = errors.New("payment does not match the recommended medication")

// CheckoutService turns a payment confirmation and the completed intake into an order
type CheckoutService interface {
	Checkout(ctx context.Context, actor *domain.Actor, confirmationToken string) (*domain.Order, error)
}

type checkoutService struct {
	orders   OrderService
	payments PaymentService
	intakes  intake.Store
	logger   *zap.Logger
}

// NewCheckoutService creates a new instance of CheckoutService
func NewCheckoutService(orders OrderService, payments PaymentService, intakes intake.Store, logger *zap.Logger) CheckoutService {
	return &checkoutService{orders: orders, payments: payments, intakes: intakes, logger: logger}
}

// IdempotencyKey derives the order idempotency key from a payment confirmation
func IdempotencyKey(confirmationToken string) string {
	sum := sha256.Sum256([]byte(confirmationToken))
	return hex.EncodeToString(sum[:])
}

// Checkout creates at most one order per payment confirmation. Replaying a
// confirmation returns the order it already produced.
func (s *checkoutService) Checkout(ctx context.Context, actor *domain.Actor, confirmationToken string) (*domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	key := IdempotencyKey(confirmationToken)
	existing, err := s.orders.FindByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		if existing.UserID != actor.ID {
			return nil, ErrInvalidPaymentToken
		}
		return existing, nil
	case !errors.Is(err, repository.ErrOrderNotFound):
		return nil, err
	}

	payment, err := s.payments.Verify(confirmationToken)
	if err != nil {
		return nil, err
	}
	if payment.UserID != actor.ID {
		return nil, ErrInvalidPaymentToken
	}

	completed, err := s.intakes.LoadCompleted(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, intake.ErrNoCompletedIntake) {
			// a concurrent submission of the same confirmation may have consumed it
			if existing, findErr := s.orders.FindByIdempotencyKey(ctx, key); findErr == nil && existing.UserID == actor.ID {
				return existing, nil
			}
			return nil, err
		}
		return nil, fmt.Errorf("failed to load completed intake: %w", err)
	}

	handoff, ok := completed.Recommendation.Handoff()
	if !ok {
		return nil, ErrNotEligible
	}
	if handoff.Slug != payment.Slug {
		return nil, ErrPaymentMismatch
	}

	order, err := s.orders.CreateOrder(ctx, actor, CreateOrderInput{
		PatientInfo:    completed.PatientInfo,
		Answers:        completed.Answers,
		Recommendation: completed.Recommendation,
		Payment: domain.PaymentRecord{
			ID:     payment.PaymentID,
			Status: domain.PaymentStatusSuccess,
			Date:   payment.PaidAt,
		},
		IdempotencyKey: key,
	})
	if err != nil {
		return nil, err
	}

	if err := s.intakes.ClearCompleted(ctx, actor.ID); err != nil {
		s.logger.Warn("Failed to clear completed intake after checkout",
			zap.String("user_id", actor.ID),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}

	return order, nil
}
