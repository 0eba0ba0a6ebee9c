package middleware

import (
	"net/http"

	"medinexa/internal/domain"

	"go.uber.org/zap"
)

// RequireAdmin middleware ensures the actor has admin role
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole([]domain.Role{domain.RoleAdmin}, logger)
}

// RequireRole middleware ensures the actor has one of the specified roles
func RequireRole(allowedRoles []domain.Role, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if actor == nil {
				logger.Warn("Actor not found in context")
				RespondWithError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			for _, allowed := range allowedRoles {
				if actor.Role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("User role not authorized",
				zap.String("user_id", actor.ID),
				zap.String("role", string(actor.Role)),
				zap.String("path", r.URL.Path),
			)
			RespondWithError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}
