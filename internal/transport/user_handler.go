package transport

import (
	"net/http"
	"time"

	"medinexa/internal/domain"
	"medinexa/internal/middleware"
	"medinexa/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the token refresh request payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest carries the refresh session to revoke, if the client holds one
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserProfile represents user profile data
type UserProfile struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt *time.Time  `json:"created_at,omitempty"`
}

func profileOf(user *domain.User) UserProfile {
	createdAt := user.CreatedAt
	return UserProfile{
		ID:        user.ID.String(),
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: &createdAt,
	}
}

// UserHandler handles HTTP requests for account and session operations
type UserHandler struct {
	userService   service.UserService
	secureCookies bool
	logger        *zap.Logger
}

// NewUserHandler creates a new UserHandler. secureCookies marks the session cookie Secure.
func NewUserHandler(userService service.UserService, secureCookies bool, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService:   userService,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// RegisterRoutes registers all auth routes
func (h *UserHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/auth", func(r chi.Router) {
		// Public routes
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/admin/login", h.AdminLogin)
		r.Post("/refresh", h.RefreshToken)
		r.Post("/logout", h.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/me", h.Me)
		})
	})
}

func (h *UserHandler) setSessionCookie(w http.ResponseWriter, session *service.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *UserHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// Register handles patient registration
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	user, err := h.userService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "failed to register user")
		return
	}

	h.logger.Info("User registered successfully", zap.String("user_id", user.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, profileOf(user))
}

// Login handles patient authentication and sets the session cookie
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	session, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debug("Login failed", zap.Error(err))
		respondWithServiceError(w, r, h.logger, err, "failed to login")
		return
	}

	h.setSessionCookie(w, session)
	h.logger.Info("User logged in successfully", zap.String("user_id", session.Actor.ID))
	middleware.RespondWithJSON(w, http.StatusOK, session)
}

// AdminLogin authenticates the configured administrator
func (h *UserHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	session, err := h.userService.AdminLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("Admin login failed", zap.String("remote_addr", r.RemoteAddr))
		respondWithServiceError(w, r, h.logger, err, "failed to login")
		return
	}

	h.setSessionCookie(w, session)
	h.logger.Info("Admin logged in")
	middleware.RespondWithJSON(w, http.StatusOK, session)
}

// RefreshToken exchanges a refresh session for a new access token
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	session, err := h.userService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.logger.Debug("Token refresh failed", zap.Error(err))
		respondWithServiceError(w, r, h.logger, err, "failed to refresh token")
		return
	}

	h.setSessionCookie(w, session)
	middleware.RespondWithJSON(w, http.StatusOK, session)
}

// Logout revokes the refresh session and clears the session cookie.
// An empty body is accepted.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if r.ContentLength != 0 && !decodeRequest(w, r, h.logger, &req) {
		return
	}

	if err := h.userService.Logout(r.Context(), req.RefreshToken); err != nil {
		respondWithServiceError(w, r, h.logger, err, "failed to logout")
		return
	}

	h.clearSessionCookie(w)
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// Me returns the authenticated actor
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, actor)
}
