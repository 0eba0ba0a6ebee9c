package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"medinexa/internal/catalog"
	"medinexa/internal/config"
	"medinexa/internal/database"
	"medinexa/internal/events"
	"medinexa/internal/intake"
	custommiddleware "medinexa/internal/middleware"
	"medinexa/internal/recommendation"
	"medinexa/internal/repository"
	"medinexa/internal/service"
	"medinexa/internal/storage"
	"medinexa/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config    *config.Config
	logger    *zap.Logger
	db        database.Service
	redis     *redis.Client
	publisher events.Publisher
}

// Handlers groups the HTTP surface mounted by NewRouter
type Handlers struct {
	Users  *transport.UserHandler
	Intake *transport.IntakeHandler
	Orders *transport.OrderHandler
	Admin  *transport.AdminHandler
}

// HealthFunc reports dependency health; a "status" other than "up" yields 503
type HealthFunc func() map[string]string

// NewRouter assembles middleware and routes. redisClient may be nil, which disables rate limiting.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	resolver custommiddleware.ActorResolver,
	h Handlers,
	redisClient *redis.Client,
	health HealthFunc,
) http.Handler {
	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, !cfg.Server.IsProduction()))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := health()
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, stats)
	})

	rateLimit := func(next http.Handler) http.Handler { return next }
	if redisClient != nil {
		rateLimit = custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "rate_limit",
		}, logger)
	}

	// authenticated requests are limited per actor, public ones per client IP
	authMiddleware := chi.Chain(custommiddleware.AuthMiddleware(resolver, logger), rateLimit).Handler
	adminMiddleware := custommiddleware.RequireAdmin(logger)

	h.Users.RegisterRoutes(router.With(rateLimit), authMiddleware)
	h.Intake.RegisterRoutes(router, authMiddleware)
	h.Orders.RegisterRoutes(router, authMiddleware)
	h.Admin.RegisterRoutes(router, authMiddleware, adminMiddleware)

	return router
}

func newIntakeStore(redisClient *redis.Client) intake.Store {
	if redisClient != nil {
		return intake.NewRedisStore(redisClient)
	}
	return intake.NewMemoryStore()
}

func newAttachmentStore(ctx context.Context, cfg config.S3Config) (storage.Store, error) {
	if !cfg.Enabled() {
		return storage.NewMemoryStore(intake.MaxAttachmentBytes), nil
	}
	client, err := storage.NewS3Client(ctx, storage.S3Config{
		Bucket:       cfg.Bucket,
		Region:       cfg.Region,
		Endpoint:     cfg.Endpoint,
		UsePathStyle: cfg.UsePathStyle,
	})
	if err != nil {
		return nil, err
	}
	return storage.NewS3Store(client, cfg.Bucket, intake.MaxAttachmentBytes), nil
}

func newPublisher(cfg config.KafkaConfig) events.Publisher {
	if cfg.Enabled() {
		return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
	}
	return events.NewNopPublisher()
}

// NewServer wires repositories, stores and services into an HTTP server.
// Redis, S3 and Kafka are optional; in-process fallbacks are used when unset.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger, db database.Service) (*Server, error) {
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis is not reachable yet", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		}
	} else {
		logger.Warn("REDIS_HOST not set: intake progress is kept in memory and rate limiting is off")
	}

	schema, err := intake.LoadSchema(cfg.Intake.StepsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load intake steps: %w", err)
	}

	attachments, err := newAttachmentStore(ctx, cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment store: %w", err)
	}

	publisher := newPublisher(cfg.Kafka)
	cat := catalog.Default()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB())
	sessionRepo := repository.NewSessionRepository(db.DB())
	orderRepo := repository.NewOrderRepository(db.DB())

	// Initialize services
	intakeStore := newIntakeStore(redisClient)
	userService := service.NewUserService(userRepo, sessionRepo, service.AuthConfig{
		Secret:        cfg.JWT.Secret,
		AccessTTL:     time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		RefreshTTL:    time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
		AdminEmail:    cfg.Admin.Email,
		AdminPassword: cfg.Admin.Password,
	})
	orderService := service.NewOrderService(orderRepo, service.NewTransitionPolicy(cfg.Orders.StrictTransitions), publisher, logger)
	paymentService := service.NewPaymentService(cat, cfg.JWT.Secret, cfg.Payment.Latency)
	checkoutService := service.NewCheckoutService(orderService, paymentService, intakeStore, logger)
	intakeService := service.NewIntakeService(schema, intakeStore, cat, recommendation.Default(), attachments, logger)

	// Initialize handlers
	handlers := Handlers{
		Users:  transport.NewUserHandler(userService, cfg.Server.IsProduction(), logger),
		Intake: transport.NewIntakeHandler(intakeService, orderService, logger),
		Orders: transport.NewOrderHandler(paymentService, checkoutService, orderService, logger),
		Admin:  transport.NewAdminHandler(userService, orderService, logger),
	}

	router := NewRouter(cfg, logger, userService, handlers, redisClient, db.Health)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:    cfg,
		logger:    logger,
		db:        db,
		redis:     redisClient,
		publisher: publisher,
	}, nil
}

// Close releases the database pool, the redis client and the event writer
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if err := s.publisher.Close(); err != nil {
		s.logger.Error("Failed to close event publisher", zap.Error(err))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
