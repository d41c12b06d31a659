// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"billing-service/internal/config"
	"billing-service/internal/db"
	authHandler "billing-service/internal/handlers/auth"
	invoiceHandler "billing-service/internal/handlers/invoice"
	notifyHandler "billing-service/internal/handlers/notification"
	paymentHandler "billing-service/internal/handlers/payment"
	subscriptionHandler "billing-service/internal/handlers/subscription"
	wsHandler "billing-service/internal/handlers/websocket"
	"billing-service/internal/metrics"
	"billing-service/internal/middleware"
	"billing-service/internal/pkg/jwt"
	"billing-service/internal/pkg/session"
	"billing-service/internal/scheduler"
	"billing-service/internal/websocket"
	wsHandlers "billing-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	cfg        config.AppConfig
	engine     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger

	pool      *pgxpool.Pool
	redis     *redis.Client
	scheduler *scheduler.RenewalScheduler
	stopHub   context.CancelFunc
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}
}

// Build connects the stores and wires repositories, services and routes.
func (s *Server) Build(ctx context.Context) error {
	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.pool = pool

	// ----- Redis (optional: scheduler lock, token revocation, rate limits) -----
	var (
		lock        redis.Cmdable
		revocations middleware.RevocationChecker
		revoker     authHandler.Revoker
		limiter     middleware.Limiter
	)
	if s.cfg.RedisAddr != "" {
		redisClient, err := db.NewRedisClient(db.RedisConfig{
			Addresses: []string{s.cfg.RedisAddr},
			Password:  s.cfg.RedisPass,
			DB:        0,
			PoolSize:  10,
		})
		if err != nil {
			return err
		}
		s.redis = redisClient
		lock = redisClient

		sessions := session.NewManager(redisClient)
		revocations = sessions
		revoker = sessions
		limiter = session.NewRateLimiter(redisClient)
		s.logger.Info("connected to redis", zap.String("addr", s.cfg.RedisAddr))
	}

	// ----- JWT -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	m := metrics.New()

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(verifier, s.logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	s.stopHub = stopHub
	go hub.Run(hubCtx)

	// ----- Services -----
	services := NewServices(pool, hub, s.cfg, m, s.logger)
	hub.RegisterHandler(wsHandlers.NewNotificationHandler(services.Notification))

	// ----- Scheduler -----
	if s.cfg.Notifier.Enabled {
		s.scheduler = scheduler.NewRenewalScheduler(services.Notification, lock, scheduler.Config{
			Interval:     s.cfg.Notifier.Interval,
			RunOnStartup: s.cfg.Notifier.RunOnStartup,
		}, m, s.logger)
		if err := s.scheduler.Start(); err != nil {
			return err
		}
	}

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(verifier, revocations)
	s.engine.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger),
		middleware.CORSMiddleware(),
		m.Middleware(),
	)

	// ----- Router -----
	SetupRouter(s.engine, &Handlers{
		AuthHandler:         authHandler.NewAuthHandler(revoker, s.logger),
		SubscriptionHandler: subscriptionHandler.NewSubscriptionHandler(services.Subscription),
		InvoiceHandler:      invoiceHandler.NewInvoiceHandler(services.Invoice),
		PaymentHandler:      paymentHandler.NewPaymentHandler(services.Payment),
		NotifHandler:        notifyHandler.NewNotificationHandler(services.Notification),
		WSHandler:           wsHandler.NewWebSocketHandler(hub, revocations, s.cfg.WSAllowedOrigins, s.logger),
		AuthMiddleware:      authMiddleware,
		Limiter:             limiter,
		Metrics:             m,
		HealthCheck:         pool.Ping,
		Logger:              s.logger,
	})

	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Run serves HTTP until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("server running", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains HTTP, stops the scheduler and hub, and closes the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	if s.httpServer != nil {
		shutdownErr = s.httpServer.Shutdown(ctx)
	}
	if s.scheduler != nil {
		s.scheduler.Stop(ctx)
	}
	if s.stopHub != nil {
		s.stopHub()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return shutdownErr
}
