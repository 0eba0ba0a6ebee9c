package transport

import (
	"net/http"

	"medinexa/internal/domain"
	"medinexa/internal/middleware"
	"medinexa/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ChargeRequest is the mock card payment for a recommended product
type ChargeRequest struct {
	Slug       string `json:"slug" validate:"required"`
	CardNumber string `json:"cardNumber" validate:"required"`
}

// CheckoutRequest places an order for a confirmed payment
type CheckoutRequest struct {
	ConfirmationToken string `json:"confirmationToken" validate:"required"`
}

// OrderListResponse wraps the order history
type OrderListResponse struct {
	Orders []domain.Order `json:"orders"`
	Total  int            `json:"total"`
}

// OrderHandler handles payment, checkout and order history requests
type OrderHandler struct {
	paymentService  service.PaymentService
	checkoutService service.CheckoutService
	orderService    service.OrderService
	logger          *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(
	paymentService service.PaymentService,
	checkoutService service.CheckoutService,
	orderService service.OrderService,
	logger *zap.Logger,
) *OrderHandler {
	return &OrderHandler{
		paymentService:  paymentService,
		checkoutService: checkoutService,
		orderService:    orderService,
		logger:          logger,
	}
}

// RegisterRoutes registers payment and order routes. Every route requires a session.
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/api/payments", h.Charge)

		r.Route("/api/orders", func(r chi.Router) {
			r.Post("/", h.Checkout)
			r.Get("/", h.ListOrders)
			r.Get("/{id}", h.GetOrder)
		})
	})
}

// Charge runs the mock payment and returns a signed confirmation
func (h *OrderHandler) Charge(w http.ResponseWriter, r *http.Request) {
	var req ChargeRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	confirmation, err := h.paymentService.Charge(r.Context(), middleware.ActorFromContext(r.Context()), req.Slug, req.CardNumber)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "payment failed")
		return
	}

	h.logger.Info("Payment confirmed",
		zap.String("payment_id", confirmation.PaymentID),
		zap.String("slug", confirmation.Slug),
	)
	middleware.RespondWithJSON(w, http.StatusOK, confirmation)
}

// Checkout creates the order for a payment confirmation. Repeating the
// request with the same confirmation returns the same order.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	order, err := h.checkoutService.Checkout(r.Context(), middleware.ActorFromContext(r.Context()), req.ConfirmationToken)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "failed to create order")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// ListOrders returns the actor's orders, or every order for an administrator
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListOrders(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, OrderListResponse{Orders: orders, Total: len(orders)})
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrder(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "failed to get order")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}
