package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bivex/iap-reconciler/internal/domain/service"
	"github.com/bivex/iap-reconciler/internal/infrastructure/config"
	"github.com/bivex/iap-reconciler/internal/infrastructure/external/verification"
	"github.com/bivex/iap-reconciler/internal/infrastructure/logging"
	"github.com/bivex/iap-reconciler/internal/infrastructure/persistence/ledger"
	"github.com/bivex/iap-reconciler/internal/infrastructure/persistence/pool"
	worker_tasks "github.com/bivex/iap-reconciler/internal/worker/tasks"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logging.Init(&cfg.Sentry); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()

	logging.Logger.Info("Starting reconciler worker")

	ctx := context.Background()

	// Initialize Redis
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logging.Logger.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	opts.PoolSize = cfg.Redis.PoolSize
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logging.Logger.Fatal("Failed to ping Redis", zap.Error(err))
	}

	// The worker sweeps the same ledger the API serves. Opening the same blob
	// store is safe because the ledger reloads the blob before every mutation,
	// so orders the API records after this process boots are never lost.
	var blobStore ledger.BlobStore
	if cfg.Database.URL != "" {
		dbPool, err := pool.NewPool(ctx, cfg.Database)
		if err != nil {
			logging.Logger.Fatal("Failed to create database pool", zap.Error(err))
		}
		defer pool.Close(dbPool)

		pgStore := ledger.NewPostgresBlobStore(dbPool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logging.Logger.Fatal("Failed to ensure ledger schema", zap.Error(err))
		}
		blobStore = pgStore
	} else {
		blobStore = ledger.NewRedisBlobStore(redisClient)
	}

	pendingLedger := ledger.Open(ctx, blobStore, logging.WithComponent("ledger"))
	verifier := verification.NewClient(cfg.Verify.Endpoint, cfg.Verify.Timeout, logging.WithComponent("verification"))

	// Sweeps only verify; consume/acknowledge stays with the API process, so
	// no storefront adapter is bound here.
	engine := service.NewReconciliationEngine(pendingLedger, verifier, logging.WithComponent("reconciliation"))
	taskHandlers := worker_tasks.NewTaskHandlers(engine)

	// Initialize Asynq server
	server := asynq.NewServerFromRedisClient(redisClient, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			// Exponential backoff: 2^n seconds
			return time.Duration(1<<uint(n)) * time.Second
		},
	})

	mux := asynq.NewServeMux()
	worker_tasks.RegisterHandlers(mux, taskHandlers)

	if err := server.Start(mux); err != nil {
		logging.Logger.Fatal("Failed to start worker", zap.Error(err))
	}

	// Scheduled sweep runs only when an account to sweep for is configured.
	var scheduler *asynq.Scheduler
	if cfg.Worker.SweepUserID != "" {
		scheduler = asynq.NewSchedulerFromRedisClient(redisClient, nil)
		if err := worker_tasks.RegisterScheduledTasks(scheduler, cfg.Worker.SweepCron, cfg.Worker.SweepUserID); err != nil {
			logging.Logger.Fatal("Failed to register scheduled tasks", zap.Error(err))
		}
		if err := scheduler.Start(); err != nil {
			logging.Logger.Fatal("Failed to start scheduler", zap.Error(err))
		}
	} else {
		logging.Logger.Info("No sweep user configured, scheduler disabled")
	}

	logging.Logger.Info("Worker started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info("Shutting down worker...")

	if scheduler != nil {
		scheduler.Shutdown()
	}
	server.Shutdown()

	logging.Logger.Info("Worker exited")
}
