package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment stage of an order. The string values are wire-visible.
type OrderStatus string

const (
	OrderStatusPendingReview OrderStatus = "pending_review"
	OrderStatusApproved      OrderStatus = "approved"
	OrderStatusShipped       OrderStatus = "shipped"
	OrderStatusCompleted     OrderStatus = "completed"
	OrderStatusDeclined      OrderStatus = "declined"
)

// OrderStatuses lists every defined status in fulfillment order
var OrderStatuses = []OrderStatus{
	OrderStatusPendingReview,
	OrderStatusApproved,
	OrderStatusShipped,
	OrderStatusCompleted,
	OrderStatusDeclined,
}

// Valid reports whether s is a defined status
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further fulfillment happens after s
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusDeclined
}

// ParseOrderStatus converts a wire string into an OrderStatus
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return s, nil
}

// PaymentStatus values recorded on the payment sub-record
const (
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
	PaymentStatusPending = "pending"
)

// ProductSnapshot freezes the purchased product at checkout time
type ProductSnapshot struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Slug   string          `json:"slug"`
	Reason string          `json:"reason"`
}

// PaymentRecord is the payment sub-record of an order
type PaymentRecord struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Date   time.Time `json:"date"`
}

// Order is a placed medication order.
// Product, PatientInfo and IntakeAnswers are snapshots and never change after creation.
type Order struct {
	StorageID      int64           `json:"storageId" db:"seq"`
	ID             string          `json:"id" db:"id"`
	UserID         string          `json:"userId" db:"user_id"`
	UserEmail      string          `json:"userEmail" db:"user_email"`
	UserName       string          `json:"userName" db:"user_name"`
	Product        ProductSnapshot `json:"product" db:"product"`
	PatientInfo    PatientInfo     `json:"patientInfo" db:"patient_info"`
	IntakeAnswers  Answers         `json:"intakeAnswers" db:"intake_answers"`
	Payment        PaymentRecord   `json:"payment" db:"payment"`
	Status         OrderStatus     `json:"status" db:"status"`
	IdempotencyKey string          `json:"-" db:"idempotency_key"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}
