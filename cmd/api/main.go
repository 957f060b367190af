package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"procurement_backend/internal/aiusage"
	"procurement_backend/internal/approvals"
	"procurement_backend/internal/audit"
	"procurement_backend/internal/channels"
	"procurement_backend/internal/events"
	apphttp "procurement_backend/internal/http"
	"procurement_backend/internal/http/router"
	"procurement_backend/internal/links"
	"procurement_backend/internal/negotiation"
	"procurement_backend/internal/notification"
	"procurement_backend/internal/quotes"
	"procurement_backend/internal/templates"
	"procurement_backend/platform/cache"
	"procurement_backend/platform/config"
	"procurement_backend/platform/db"
	"procurement_backend/platform/logger"
	"procurement_backend/platform/telemetry"
	"procurement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		panic("failed to set up telemetry: " + err.Error())
	}

	log := logger.New(cfg.Env)
	if tel != nil {
		log = logger.NewWithOTel(cfg.Env, cfg.GetServiceName())
	}
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	health := map[string]apphttp.HealthChecker{"postgres": db.NewPoolAdapter(pool)}
	rdb := initRedis(ctx, cfg, log)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		health["redis"] = cache.NewHealthAdapter(rdb)
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	channelsModule := channels.NewModule(pool, rdb, cfg, val, log)
	linksModule := links.NewModule(cfg, rdb, log)

	resolver, err := templates.NewResolver(templates.NewRepository(pool), log.WithComponent("templates"))
	if err != nil {
		log.Error("failed to load fallback templates", "error", err)
		panic("failed to load fallback templates: " + err.Error())
	}

	auditLog := audit.NewRepository(pool)
	usage := aiusage.NewRepository(pool, log)

	quotesModule := quotes.NewModule(pool, eventBus, cfg, quotes.Collaborators{
		Messenger:  channelsModule.Adapter(),
		Renderer:   resolver,
		Targeter:   linksModule.Targeter(),
		LinkParser: linksModule.Issuer(),
	}, val, log)

	negotiationModule, err := negotiation.NewModule(pool, eventBus, cfg, negotiation.Collaborators{
		Chat:     channelsModule.Adapter(),
		Renderer: resolver,
		Auditor:  auditLog,
		Usage:    usage,
	}, val, log)
	if err != nil {
		log.Error("failed to initialize negotiation module", "error", err)
		panic("failed to initialize negotiation module: " + err.Error())
	}

	approvalsModule := approvals.NewModule(pool, eventBus, auditLog, val, log)

	// Notification module subscribes to domain events and serves the inbox
	notificationModule := notification.New(pool, channelsModule.Adapter(), resolver, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: health,
		Modules: []apphttp.Module{
			channelsModule,
			linksModule,
			quotesModule,
			negotiationModule,
			approvalsModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	notificationModule.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown failed", "error", err)
	}
}

// initRedis returns nil when Redis is not configured or unreachable, which
// disables short links and the gateway strategy cache.
func initRedis(ctx context.Context, cfg config.SchedulerConfig, log *logger.Logger) *redis.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; short links and strategy cache disabled")
		return nil
	}

	rdb, err := cache.NewRedisClient(ctx, cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return nil
	}
	return rdb
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
