/**
 * @description
 * This is the main entry point for the ledger service. It is responsible for
 * initializing all components: configuration, logging, the persistence
 * repository (PostgreSQL or JSON snapshot file), the optional message broker
 * and redis rate limiter, the ledger core and its collaborators, the cron
 * scheduler, and the HTTP server. It wires everything together and starts
 * the service.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Optional rate limiting backend.
 * - internal packages: api, app, company, config, ledger, locks, market,
 *   notify, scheduler, store, valuation.
 */

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/TheL321/PrimeBank-sub000/internal/api"
	"github.com/TheL321/PrimeBank-sub000/internal/app"
	"github.com/TheL321/PrimeBank-sub000/internal/company"
	"github.com/TheL321/PrimeBank-sub000/internal/config"
	"github.com/TheL321/PrimeBank-sub000/internal/ledger"
	"github.com/TheL321/PrimeBank-sub000/internal/locks"
	"github.com/TheL321/PrimeBank-sub000/internal/market"
	"github.com/TheL321/PrimeBank-sub000/internal/notify"
	"github.com/TheL321/PrimeBank-sub000/internal/scheduler"
	"github.com/TheL321/PrimeBank-sub000/internal/store"
	"github.com/TheL321/PrimeBank-sub000/internal/valuation"
	"github.com/TheL321/PrimeBank-sub000/pkg/rabbitmq"
	"github.com/TheL321/PrimeBank-sub000/pkg/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Pick the persistence backend: PostgreSQL when configured, otherwise a
	// JSON snapshot file.
	var repo store.Repository
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			logger.Error("unable to parse database URL", "error", err)
			os.Exit(1)
		}
		poolConfig.MaxConns = 20
		poolConfig.MaxConnLifetime = 30 * time.Minute
		poolConfig.MaxConnIdleTime = 5 * time.Minute

		dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			logger.Error("unable to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbpool.Close()
		logger.Info("database connection established")
		repo = store.NewPostgresRepository(dbpool)
	} else {
		logger.Info("using snapshot file persistence", "path", cfg.SnapshotPath)
		repo = store.NewSnapshotStore(cfg.SnapshotPath)
	}

	// Notification sinks: webhook and/or message broker, both optional.
	var sinks []notify.Sink
	if strings.TrimSpace(cfg.WebhookURL) != "" {
		sinks = append(sinks, webhook.NewClient(cfg.WebhookURL))
		logger.Info("webhook notifications enabled")
	}
	var producer rabbitmq.Publisher
	if strings.TrimSpace(cfg.RabbitMQURL) != "" {
		eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
		if err != nil {
			logger.Warn("rabbitmq producer unavailable; using fallback", "error", err)
			producer = &rabbitmq.EventProducerFallback{Logger: logger}
		} else {
			producer = eventProducer
			logger.Info("rabbitmq producer connected")
		}
		defer producer.Close()
		sinks = append(sinks, &notify.PublisherSink{Publisher: producer, Exchange: cfg.LedgerEventExchange})
	}
	notifier := notify.New(logger, cfg.NotifyQueueDepth, sinks...)
	defer notifier.Close()

	// The core: one lock manager shared by every component that mutates
	// account or company state.
	lockManager := locks.NewManager()
	accounts := ledger.NewRegistry(lockManager)
	ledgerCore := ledger.New(accounts, lockManager, notifier)
	companies := company.NewRegistry(lockManager)
	primaryMarket := market.NewPrimaryService(ledgerCore, companies, lockManager, logger)
	valuationService := valuation.NewService(companies, lockManager, repo, notifier, logger)

	service := app.NewService(ledgerCore, companies, primaryMarket, repo, logger)
	if err := service.LoadState(ctx); err != nil {
		logger.Error("state restore failed", "error", err)
		os.Exit(1)
	}
	logger.Info("state restored")

	// Optional distributed rate limiting for the abuse-prone operations.
	if strings.TrimSpace(cfg.RedisURL) != "" && (cfg.PosRateLimitPerMinute > 0 || cfg.CashbackRateLimitPerMinute > 0) {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			logger.Warn("redis url parse failed; rate limiting disabled", "error", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				logger.Warn("redis ping failed; rate limiting disabled", "error", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				logger.Info("redis connected")
				service.SetRateLimiter(
					app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix),
					cfg.PosRateLimitPerMinute,
					cfg.CashbackRateLimitPerMinute,
				)
			}
		}
	}

	// Start the cron scheduler in the background.
	sched := scheduler.New(scheduler.Jobs{
		RunValuation: valuationService.RunOnce,
		Snapshot:     service.SaveSnapshot,
	}, logger)
	sched.Start(cfg.ValuationSchedule, cfg.SnapshotSchedule)
	logger.Info("scheduler started")

	// Start the HTTP server.
	handlers := api.NewLedgerHandlers(service, logger)
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: api.LedgerRoutes(handlers, cfg.InternalAPIKey),
	}
	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal to gracefully shut down.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	stopCtx := sched.Stop()
	<-stopCtx.Done() // Wait for in-flight jobs to finish

	// Final snapshot so a clean shutdown never loses state.
	if err := service.SaveSnapshot(shutdownCtx); err != nil {
		logger.Error("final snapshot failed", "error", err)
	}
	logger.Info("shutdown complete")
}
