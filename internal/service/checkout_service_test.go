package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"medinexa/internal/domain"
	"medinexa/internal/intake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type checkoutFixture struct {
	checkout CheckoutService
	orders   OrderService
	payments PaymentService
	repo     *mockOrderRepository
	intakes  *intake.MemoryStore
}

func newCheckoutFixture() *checkoutFixture {
	repo := newMockOrderRepository()
	orders := NewOrderService(repo, PermissivePolicy{}, &recordingPublisher{}, zap.NewNop())
	payments := NewPaymentService(testCatalog(), "checkout-secret", 0)
	intakes := intake.NewMemoryStore()
	return &checkoutFixture{
		checkout: NewCheckoutService(orders, payments, intakes, zap.NewNop()),
		orders:   orders,
		payments: payments,
		repo:     repo,
		intakes:  intakes,
	}
}

func (f *checkoutFixture) completeIntake(t *testing.T, actor *domain.Actor, slug string) {
	t.Helper()
	input := orderInput(slug)
	require.NoError(t, f.intakes.SaveCompleted(context.Background(), actor.ID, intake.CompletedIntake{
		PatientInfo:    input.PatientInfo,
		Answers:        input.Answers,
		Recommendation: input.Recommendation,
		CompletedAt:    time.Now().UTC(),
	}))
}

func (f *checkoutFixture) pay(t *testing.T, actor *domain.Actor, slug string) string {
	t.Helper()
	confirmation, err := f.payments.Charge(context.Background(), actor, slug, "4242424242424242")
	require.NoError(t, err)
	return confirmation.Token
}

func TestCheckout_CreatesOrderFromCompletedIntake(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	actor := patientActor("u1")

	f.completeIntake(t, actor, "semaglutide")
	token := f.pay(t, actor, "semaglutide")

	order, err := f.checkout.Checkout(ctx, actor, token)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPendingReview, order.Status)
	assert.Equal(t, "semaglutide", order.Product.Slug)
	assert.Equal(t, IdempotencyKey(token), order.IdempotencyKey)
	assert.Equal(t, domain.PaymentStatusSuccess, order.Payment.Status)
	assert.Equal(t, "Jane Doe", order.PatientInfo.FullName)

	_, err = f.intakes.LoadCompleted(ctx, actor.ID)
	assert.ErrorIs(t, err, intake.ErrNoCompletedIntake)
}

func TestCheckout_ReplayReturnsSameOrder(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	actor := patientActor("u1")

	f.completeIntake(t, actor, "semaglutide")
	token := f.pay(t, actor, "semaglutide")

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]int{}
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := f.checkout.Checkout(ctx, actor, token)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[order.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Len(t, f.repo.orders, 1)

	again, err := f.checkout.Checkout(ctx, actor, token)
	require.NoError(t, err)
	for id := range ids {
		assert.Equal(t, id, again.ID)
	}
}

func TestCheckout_Rejections(t *testing.T) {
	ctx := context.Background()
	actor := patientActor("u1")

	t.Run("unauthenticated", func(t *testing.T) {
		f := newCheckoutFixture()
		_, err := f.checkout.Checkout(ctx, nil, "token")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("invalid token", func(t *testing.T) {
		f := newCheckoutFixture()
		f.completeIntake(t, actor, "semaglutide")
		_, err := f.checkout.Checkout(ctx, actor, "not-a-payment")
		assert.ErrorIs(t, err, ErrInvalidPaymentToken)
	})

	t.Run("payment made by someone else", func(t *testing.T) {
		f := newCheckoutFixture()
		f.completeIntake(t, actor, "semaglutide")
		token := f.pay(t, patientActor("u2"), "semaglutide")
		_, err := f.checkout.Checkout(ctx, actor, token)
		assert.ErrorIs(t, err, ErrInvalidPaymentToken)
	})

	t.Run("no completed intake", func(t *testing.T) {
		f := newCheckoutFixture()
		token := f.pay(t, actor, "semaglutide")
		_, err := f.checkout.Checkout(ctx, actor, token)
		assert.ErrorIs(t, err, intake.ErrNoCompletedIntake)
		assert.Empty(t, f.repo.orders)
	})

	t.Run("paid for a different product", func(t *testing.T) {
		f := newCheckoutFixture()
		f.completeIntake(t, actor, "semaglutide")
		token := f.pay(t, actor, "orlistat")
		_, err := f.checkout.Checkout(ctx, actor, token)
		assert.ErrorIs(t, err, ErrPaymentMismatch)
	})

	t.Run("ineligible intake", func(t *testing.T) {
		f := newCheckoutFixture()
		require.NoError(t, f.intakes.SaveCompleted(ctx, actor.ID, intake.CompletedIntake{
			Recommendation: domain.Recommendation{Reason: "none"},
		}))
		token := f.pay(t, actor, "semaglutide")
		_, err := f.checkout.Checkout(ctx, actor, token)
		assert.ErrorIs(t, err, ErrNotEligible)
	})

	t.Run("persistence failure", func(t *testing.T) {
		f := newCheckoutFixture()
		f.completeIntake(t, actor, "semaglutide")
		token := f.pay(t, actor, "semaglutide")
		f.repo.failWrite = errStoreUnavailable
		_, err := f.checkout.Checkout(ctx, actor, token)
		assert.ErrorIs(t, err, errStoreUnavailable)

		_, err = f.intakes.LoadCompleted(ctx, actor.ID)
		assert.NoError(t, err)
	})
}
