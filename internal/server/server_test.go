package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"medinexa/internal/catalog"
	"medinexa/internal/config"
	"medinexa/internal/intake"
	"medinexa/internal/recommendation"
	"medinexa/internal/service"
	"medinexa/internal/storage"
	"medinexa/internal/transport"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Env: "development"},
		RateLimit: config.RateLimitConfig{Requests: 3, Window: time.Minute},
	}
}

// newTestRouter wires handlers without repositories; only routes that never
// reach storage are exercised.
func newTestRouter(t *testing.T, redisClient *redis.Client, health HealthFunc) (http.Handler, service.UserService) {
	t.Helper()
	logger := zap.NewNop()

	schema, err := intake.DefaultSchema()
	require.NoError(t, err)
	cat := catalog.Default()
	store := intake.NewMemoryStore()

	users := service.NewUserService(nil, nil, service.AuthConfig{
		Secret:        "server-test-secret",
		AdminEmail:    "admin@medinexa.com",
		AdminPassword: "admin-secret",
	})
	orders := service.NewOrderService(nil, nil, nil, logger)
	payments := service.NewPaymentService(cat, "server-test-secret", 0)
	intakes := service.NewIntakeService(schema, store, cat, recommendation.Default(), storage.NewMemoryStore(intake.MaxAttachmentBytes), logger)

	handlers := Handlers{
		Users:  transport.NewUserHandler(users, false, logger),
		Intake: transport.NewIntakeHandler(intakes, orders, logger),
		Orders: transport.NewOrderHandler(payments, service.NewCheckoutService(orders, payments, store, logger), orders, logger),
		Admin:  transport.NewAdminHandler(users, orders, logger),
	}
	return NewRouter(testConfig(), logger, users, handlers, redisClient, health), users
}

func healthy() map[string]string {
	return map[string]string{"status": "up"}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil, healthy)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	down, _ := newTestRouter(t, nil, func() map[string]string {
		return map[string]string{"status": "down", "error": "db down"}
	})
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "db down", body["error"])
}

func TestRouter_AdminRoutesAreGated(t *testing.T) {
	router, users := newTestRouter(t, nil, healthy)

	admin, err := users.AdminLogin(t.Context(), "admin@medinexa.com", "admin-secret")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: admin.AccessToken})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), service.AdminActorID)

	req = httptest.NewRequest(http.MethodPost, "/api/intake/choices/toggle", strings.NewReader(`{"selected":["pcos"],"value":"none"}`))
	req.Header.Set("Authorization", "Bearer "+admin.AccessToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"selected":["none"]}`, w.Body.String())
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, nil, healthy)

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_RateLimitsAuthenticatedActors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	router, users := newTestRouter(t, client, healthy)
	admin, err := users.AdminLogin(t.Context(), "admin@medinexa.com", "admin-secret")
	require.NoError(t, err)

	codes := make([]int, 0, 4)
	for range 4 {
		req := httptest.NewRequest(http.MethodGet, "/api/intake", nil)
		req.Header.Set("Authorization", "Bearer "+admin.AccessToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.True(t, mr.Exists("rate_limit:actor:"+service.AdminActorID))
}
