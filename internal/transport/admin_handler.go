package transport

import (
	"net/http"

	"medinexa/internal/domain"
	"medinexa/internal/middleware"
	"medinexa/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// StatusUpdateRequest moves an order to another fulfillment status
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminHandler serves the admin dashboard
type AdminHandler struct {
	userService  service.UserService
	orderService service.OrderService
	logger       *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(userService service.UserService, orderService service.OrderService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		userService:  userService,
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers admin routes behind authentication and the admin role gate
func (h *AdminHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware, adminMiddleware)
		r.Get("/users", h.ListUsers)
		r.Get("/users/{id}", h.GetUser)
		r.Get("/stats", h.Stats)
		r.Patch("/orders/{id}/status", h.UpdateOrderStatus)
	})
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "failed to list users")
		return
	}
	profiles := lo.Map(users, func(u domain.User, _ int) UserProfile { return profileOf(&u) })
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"users": profiles, "total": len(profiles)})
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), middleware.ActorFromContext(r.Context()), userID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "failed to get user")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, profileOf(user))
}

// Stats returns the dashboard aggregates
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orderService.Stats(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "failed to compute stats")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, stats)
}

// UpdateOrderStatus applies a status transition
func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusUpdateRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	orderID := chi.URLParam(r, "id")
	order, err := h.orderService.TransitionStatus(r.Context(), middleware.ActorFromContext(r.Context()),
		orderID, domain.OrderStatus(req.Status))
	if err != nil {
		h.logger.Debug("Status transition rejected",
			zap.String("order_id", orderID),
			zap.String("status", req.Status),
			zap.Error(err),
		)
		respondWithServiceError(w, r, h.logger, err, "failed to update order status")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}
