package service

import (
	"errors"
	"fmt"

	"medinexa/internal/domain"
)

var (
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrIllegalTransition = errors.New("illegal order status transition")
)

// TransitionPolicy decides whether an order may move between two statuses
type TransitionPolicy interface {
	Allow(from, to domain.OrderStatus) error
}

// PermissivePolicy accepts any defined status from any status
type PermissivePolicy struct{}

func (PermissivePolicy) Allow(_, to domain.OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	return nil
}

// StrictPolicy only allows forward fulfillment progress or a decline.
// completed and declined are terminal.
type StrictPolicy struct{}

var forwardTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPendingReview: {domain.OrderStatusApproved, domain.OrderStatusDeclined},
	domain.OrderStatusApproved:      {domain.OrderStatusShipped, domain.OrderStatusDeclined},
	domain.OrderStatusShipped:       {domain.OrderStatusCompleted, domain.OrderStatusDeclined},
}

func (StrictPolicy) Allow(from, to domain.OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	for _, next := range forwardTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, from, to)
}

// NewTransitionPolicy returns the strict table when strict is set
func NewTransitionPolicy(strict bool) TransitionPolicy {
	if strict {
		return StrictPolicy{}
	}
	return PermissivePolicy{}
}
