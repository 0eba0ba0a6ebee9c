package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medinexa/internal/catalog"
	"medinexa/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinCardNumberLength is the shortest card number the simulated processor accepts
const MinCardNumberLength = 8

const (
	paymentTokenTTL      = 24 * time.Hour
	paymentTokenAudience = "payment-confirmation"
)

var (
	ErrInvalidCard         = errors.New("card number must be at least 8 characters")
	ErrInvalidPaymentToken = errors.New("invalid payment confirmation")
)

// PaymentClaims is the signed payment confirmation handed to checkout
type PaymentClaims struct {
	PaymentID string          `json:"payment_id"`
	UserID    string          `json:"user_id"`
	Slug      string          `json:"slug"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
	jwt.RegisteredClaims
}

// PaymentConfirmation is returned by a successful charge
type PaymentConfirmation struct {
	Token     string          `json:"confirmation_token"`
	PaymentID string          `json:"payment_id"`
	Slug      string          `json:"slug"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
}

// PaymentService simulates a card processor
type PaymentService interface {
	Charge(ctx context.Context, actor *domain.Actor, slug, cardNumber string) (*PaymentConfirmation, error)
	Verify(token string) (*PaymentClaims, error)
}

type paymentService struct {
	catalog *catalog.Catalog
	secret  []byte
	latency time.Duration
}

// NewPaymentService creates a mock payment processor that waits latency before confirming
func NewPaymentService(cat *catalog.Catalog, secret string, latency time.Duration) PaymentService {
	return &paymentService{catalog: cat, secret: []byte(secret), latency: latency}
}

func (s *paymentService) Charge(ctx context.Context, actor *domain.Actor, slug, cardNumber string) (*PaymentConfirmation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(cardNumber)) < MinCardNumberLength {
		return nil, ErrInvalidCard
	}

	product, err := s.catalog.FindBySlug(slug)
	if err != nil {
		return nil, err
	}

	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	paidAt := time.Now().UTC()
	claims := &PaymentClaims{
		PaymentID: uuid.NewString(),
		UserID:    actor.ID,
		Slug:      product.Slug,
		Amount:    product.Price,
		PaidAt:    paidAt,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Audience:  jwt.ClaimStrings{paymentTokenAudience},
			IssuedAt:  jwt.NewNumericDate(paidAt),
			ExpiresAt: jwt.NewNumericDate(paidAt.Add(paymentTokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payment confirmation: %w", err)
	}

	return &PaymentConfirmation{
		Token:     token,
		PaymentID: claims.PaymentID,
		Slug:      claims.Slug,
		Amount:    claims.Amount,
		PaidAt:    paidAt,
	}, nil
}

func (s *paymentService) Verify(tokenString string) (*PaymentClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PaymentClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithAudience(paymentTokenAudience))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPaymentToken, err)
	}

	claims, ok := token.Claims.(*PaymentClaims)
	if !ok || !token.Valid || claims.PaymentID == "" {
		return nil, ErrInvalidPaymentToken
	}
	return claims, nil
}
