package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"medinexa/internal/domain"

	"go.uber.org/zap"
)

type contextKey string

const actorKey contextKey = "actor"

// SessionCookieName carries the access token for browser clients
const SessionCookieName = "session"

var (
	errMissingToken      = errors.New("missing authentication token")
	errInvalidAuthHeader = errors.New("invalid authorization header format")
)

// ActorResolver turns an access token into the authenticated actor
type ActorResolver interface {
	ResolveActor(token string) (*domain.Actor, error)
}

// tokenFromRequest reads the Bearer header first, then the session cookie
func tokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", errInvalidAuthHeader
		}
		return parts[1], nil
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", errMissingToken
}

// AuthMiddleware resolves the actor from the request and rejects anonymous calls
func AuthMiddleware(resolver ActorResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := tokenFromRequest(r)
			if err != nil {
				logger.Debug("Request without usable token", zap.Error(err))
				RespondWithError(w, http.StatusUnauthorized, err.Error())
				return
			}

			actor, err := resolver.ResolveActor(token)
			if err != nil || actor == nil {
				logger.Debug("Token validation failed", zap.Error(err))
				RespondWithError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			logger.Debug("User authenticated",
				zap.String("user_id", actor.ID),
				zap.String("role", string(actor.Role)),
			)

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// WithActor stores the actor on the context
func WithActor(ctx context.Context, actor *domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor resolved by AuthMiddleware, or nil
func ActorFromContext(ctx context.Context) *domain.Actor {
	actor, _ := ctx.Value(actorKey).(*domain.Actor)
	return actor
}
