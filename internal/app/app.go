package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pr-poehali-dev/zdrav-project/internal/catalog"
	"github.com/pr-poehali-dev/zdrav-project/internal/config"
	"github.com/pr-poehali-dev/zdrav-project/internal/event"
	handler "github.com/pr-poehali-dev/zdrav-project/internal/handler/http"
	"github.com/pr-poehali-dev/zdrav-project/internal/notify"
	"github.com/pr-poehali-dev/zdrav-project/internal/repository"
	"github.com/pr-poehali-dev/zdrav-project/internal/repository/memory"
	redisrepo "github.com/pr-poehali-dev/zdrav-project/internal/repository/redis"
	"github.com/pr-poehali-dev/zdrav-project/internal/service"
	"github.com/pr-poehali-dev/zdrav-project/internal/view"
	"github.com/pr-poehali-dev/zdrav-project/pkg/database"
	"github.com/pr-poehali-dev/zdrav-project/pkg/health"
	pkgkafka "github.com/pr-poehali-dev/zdrav-project/pkg/kafka"
	"github.com/pr-poehali-dev/zdrav-project/pkg/middleware"
	"github.com/pr-poehali-dev/zdrav-project/pkg/tracing"
)

const (
	serviceName    = "storefront"
	serviceVersion = "0.1.0"

	janitorInterval = time.Minute
	visitorTTL      = 10 * time.Minute
)

// initTracer is replaced in tests.
var initTracer = tracing.InitTracer

// App wires together all dependencies and runs the storefront.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	limiter        *middleware.RateLimiter
	janitors       []func(context.Context)
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := initTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{
		cfg:            cfg,
		logger:         logger,
		tracerShutdown: tracerShutdown,
	}

	// Release whatever was already acquired when a later step fails.
	fail := func(err error) (*App, error) {
		a.release(ctx)
		return nil, err
	}

	healthHandler := health.NewHandler()

	// Session store.
	var repo repository.SessionRepository
	switch cfg.SessionStore {
	case config.StoreRedis:
		rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPass,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err != nil {
			return fail(fmt.Errorf("connect to redis: %w", err))
		}
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		a.rdb = rdb
		repo = redisrepo.NewSessionRepository(rdb, cfg.SessionTTL())
	default:
		mem := memory.NewSessionRepository()
		a.janitors = append(a.janitors, func(ctx context.Context) { mem.RunJanitor(ctx, janitorInterval, logger) })
		repo = mem
		logger.Info("using in-memory session store")
	}
	healthHandler.Register("sessions", repo.Ping)

	// Domain events.
	var events event.Publisher = event.NopPublisher{}
	if cfg.EventsEnabled() {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.Brokers()), logger)
		events = event.NewProducer(a.producer, logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.Brokers()))
	} else {
		logger.Info("no kafka brokers configured, domain events disabled")
	}

	renderer, err := view.NewRenderer()
	if err != nil {
		return fail(fmt.Errorf("load templates: %w", err))
	}

	// Queues outlive their session by at most one TTL.
	inbox := notify.NewInbox(notify.DefaultInboxLimit, cfg.SessionTTL(), logger)
	a.janitors = append(a.janitors, func(ctx context.Context) { inbox.RunJanitor(ctx, janitorInterval) })

	storefront := service.NewStorefrontService(
		catalog.Default(),
		repo,
		inbox,
		events,
		logger,
		cfg.SessionTTL(),
	)

	a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, visitorTTL, logger)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment
	// Credentialed cross-origin calls only for explicitly listed origins.
	cors.AllowCredentials = !slices.Contains(cfg.CORSAllowedOrigins, "*")

	router := handler.NewRouter(storefront, renderer, healthHandler, logger, handler.RouterConfig{
		Session: middleware.SessionConfig{
			CookieName: middleware.DefaultSessionCookie,
			MaxAge:     cfg.SessionTTL(),
			Secure:     cfg.SessionCookieSecure,
		},
		CORS:        cors,
		PprofCIDRs:  cfg.PprofAllowedCIDRs,
		RateLimiter: a.limiter,
	})

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	for _, janitor := range a.janitors {
		go janitor(ctx)
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.limiter.Close()
	a.release(shutdownCtx)

	a.logger.Info("application shutdown complete")
	return nil
}

// release closes the outbound clients and flushes the tracer.
func (a *App) release(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	if err := a.tracerShutdown(ctx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}
}
