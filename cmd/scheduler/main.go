package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"procurement_backend/internal/channels"
	"procurement_backend/internal/events"
	"procurement_backend/internal/links"
	"procurement_backend/internal/notification"
	"procurement_backend/internal/notification/inapp"
	"procurement_backend/internal/quotes"
	"procurement_backend/internal/scheduler"
	"procurement_backend/internal/templates"
	"procurement_backend/platform/cache"
	"procurement_backend/platform/config"
	"procurement_backend/platform/db"
	"procurement_backend/platform/logger"
	"procurement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	rdb, err := cache.NewRedisClient(ctx, cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	// Worker-side reminder wiring (no HTTP handlers required).
	channelsModule := channels.NewModule(pool, rdb, cfg, val, log)
	linksModule := links.NewModule(cfg, rdb, log)
	resolver, err := templates.NewResolver(templates.NewRepository(pool), log.WithComponent("templates"))
	if err != nil {
		log.Error("failed to load fallback templates", "error", err)
		panic("failed to load fallback templates: " + err.Error())
	}

	notificationModule := notification.New(pool, channelsModule.Adapter(), resolver, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	quotesModule := quotes.NewModule(pool, eventBus, cfg, quotes.Collaborators{
		Messenger:  channelsModule.Adapter(),
		Renderer:   resolver,
		Targeter:   linksModule.Targeter(),
		LinkParser: linksModule.Issuer(),
	}, val, log)

	cron, err := scheduler.NewCron(cfg, log)
	if err != nil {
		log.Error("failed to initialize cron", "error", err)
		panic("failed to initialize cron: " + err.Error())
	}

	worker, err := scheduler.NewWorker(cfg, quotesModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	cleanupInterval := getDurationEnv("NOTIFICATION_CLEANUP_INTERVAL", 6*time.Hour)
	retention := getDurationEnv("NOTIFICATION_READ_RETENTION", 90*24*time.Hour)
	cleanup := scheduler.NewNotificationCleanup(inapp.NewRepository(pool), log, cleanupInterval, retention)

	var wg sync.WaitGroup
	for _, run := range []func(context.Context){cron.Run, cleanup.Run} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}

	worker.Run(ctx)
	wg.Wait()
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
