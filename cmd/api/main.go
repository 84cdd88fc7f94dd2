package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bivex/iap-reconciler/internal/application/command"
	"github.com/bivex/iap-reconciler/internal/application/middleware"
	"github.com/bivex/iap-reconciler/internal/application/query"
	"github.com/bivex/iap-reconciler/internal/domain/entity"
	"github.com/bivex/iap-reconciler/internal/domain/provider"
	"github.com/bivex/iap-reconciler/internal/domain/service"
	"github.com/bivex/iap-reconciler/internal/infrastructure/config"
	"github.com/bivex/iap-reconciler/internal/infrastructure/external/iap"
	"github.com/bivex/iap-reconciler/internal/infrastructure/external/storefront"
	"github.com/bivex/iap-reconciler/internal/infrastructure/external/verification"
	"github.com/bivex/iap-reconciler/internal/infrastructure/logging"
	"github.com/bivex/iap-reconciler/internal/infrastructure/persistence/ledger"
	"github.com/bivex/iap-reconciler/internal/infrastructure/persistence/pool"
	app_handler "github.com/bivex/iap-reconciler/internal/interfaces/http/handlers"
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

	logging.Logger.Info("Starting reconciler API server",
		zap.Int("port", cfg.Server.Port),
		zap.String("store_provider", cfg.Store.Provider),
	)

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

	// Pending ledger persists to Postgres when configured, Redis otherwise.
	var blobStore ledger.BlobStore
	if cfg.Database.URL != "" {
		dbPool, err := pool.NewPool(ctx, cfg.Database)
		if err != nil {
			logging.Logger.Fatal("Failed to create database pool", zap.Error(err))
		}
		defer pool.Close(dbPool)

		if err := pool.Ping(ctx, dbPool); err != nil {
			logging.Logger.Fatal("Failed to ping database", zap.Error(err))
		}

		pgStore := ledger.NewPostgresBlobStore(dbPool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logging.Logger.Fatal("Failed to ensure ledger schema", zap.Error(err))
		}
		blobStore = pgStore
	} else {
		blobStore = ledger.NewRedisBlobStore(redisClient)
	}

	pendingLedger := ledger.Open(ctx, blobStore, logging.WithComponent("ledger"))

	// Reconciliation core
	verifier := verification.NewClient(cfg.Verify.Endpoint, cfg.Verify.Timeout, logging.WithComponent("verification"))
	engine := service.NewReconciliationEngine(pendingLedger, verifier, logging.WithComponent("reconciliation"))
	flow := service.NewFlowCoordinator(engine, nil, logging.WithComponent("flow"))

	store := buildStorefront(cfg, flow.Sink(ctx))
	engine.BindStore(store)

	if err := store.Connect(ctx); err != nil {
		logging.Logger.Fatal("Failed to connect to storefront", zap.Error(err))
	}
	if err := store.QueryCatalog(ctx, cfg.Store.ProductIDs); err != nil {
		logging.Logger.Error("Catalog query failed", zap.Error(err))
	}
	// Pick up purchases that completed while the service was down.
	queryOwned(ctx, cfg.Store.Provider, store)

	// Initialize middleware
	jwtMiddleware := middleware.NewJWTMiddleware(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		redisClient,
		cfg.JWT.AccessTTL,
	)
	rateLimiter := middleware.NewRateLimiter(redisClient, true) // fail open

	// Initialize commands
	launchCmd := command.NewLaunchPurchaseCommand(store)
	cancelCmd := command.NewCancelPurchaseCommand(engine)
	verifyCmd := command.NewVerifyPendingCommand(engine, pendingLedger)
	sweepCmd := command.NewSweepPendingCommand(engine)
	recurringCmd := command.NewManageRecurringCommand(store, pendingLedger)
	appleCmd := command.NewVerifyChargeCommand(
		iap.NewAppleChecker(cfg.IAP.AppleSharedSecret),
		logging.WithComponent("charge_apple"),
	)
	googleCmd := command.NewVerifyChargeCommand(
		iap.NewGoogleChecker(cfg.IAP.GoogleKeyJSON),
		logging.WithComponent("charge_google"),
	)

	// Initialize queries
	listQuery := query.NewListPendingQuery(pendingLedger)
	catalogQuery := query.NewGetCatalogQuery(flow)

	// Initialize handlers
	authHandler := app_handler.NewAuthHandler(jwtMiddleware, cfg.JWT.AccessTTL)
	reconcileHandler := app_handler.NewReconcileHandler(
		launchCmd,
		cancelCmd,
		verifyCmd,
		sweepCmd,
		recurringCmd,
		listQuery,
		catalogQuery,
	)
	chargeHandler := app_handler.NewChargeHandler(appleCmd, googleCmd)

	// Setup Gin router
	if cfg.Sentry.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		logging.RequestMiddleware(logging.Logger),
	)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"pending": strconv.Itoa(engine.PendingCount()),
		})
	})

	// Charge routes keep the legacy client wire contract: bare {code, msg}
	// bodies and no auth header, throttled instead.
	router.POST("/charge",
		rateLimiter.Middleware(middleware.ByIP, middleware.ChargeConfig),
		chargeHandler.Charge,
	)
	router.POST("/gp_charge",
		rateLimiter.Middleware(middleware.ByIP, middleware.ChargeConfig),
		chargeHandler.GPCharge,
	)

	// API v1 routes
	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/token",
				rateLimiter.Middleware(middleware.ByIP, middleware.DefaultConfig),
				authHandler.Token,
			)
		}

		// Protected routes (require JWT)
		protected := v1.Group("")
		protected.Use(jwtMiddleware.Authenticate())
		{
			protected.POST("/auth/revoke", authHandler.Revoke)

			purchases := protected.Group("/purchases")
			purchases.GET("/catalog", reconcileHandler.Catalog)
			purchases.POST("", reconcileHandler.LaunchPurchase)
			purchases.POST("/cancel", reconcileHandler.CancelPurchase)
			purchases.POST("/recurring", reconcileHandler.ManageRecurring)

			pending := protected.Group("/pending")
			pending.GET("", reconcileHandler.ListPending)
			pending.POST("/verify", reconcileHandler.VerifyPending)
			pending.POST("/sweep",
				rateLimiter.Middleware(middleware.ByUserID, middleware.DefaultConfig),
				reconcileHandler.SweepPending,
			)
		}
	}

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	go func() {
		logging.Logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logging.Logger.Info("Server exited")
}

// buildStorefront assembles the configured provider adapter over the dev
// caller. A real deployment swaps the dev caller for the native SDK bridge;
// the adapter and everything above it stay unchanged.
func buildStorefront(cfg *config.Config, sink provider.Sink) provider.Adapter {
	logger := logging.WithComponent("storefront")
	dev := storefront.NewDevCaller(devCatalog(cfg.Store.ProductIDs), logger)

	switch cfg.Store.Provider {
	case "onestore":
		s := storefront.NewOneStore(dev, sink, cfg.Store.OneStorePublicKey, logger)
		dev.AttachOneStore(s)
		return s
	default:
		s := storefront.NewGenericStore(dev, sink, cfg.Store.ProductIDs, logger)
		dev.AttachGeneric(s)
		return s
	}
}

// devCatalog fabricates catalog entries for the dev caller. Prices are
// minor-unit integer strings.
func devCatalog(productIDs []string) []storefront.GenericStoreProduct {
	products := make([]storefront.GenericStoreProduct, 0, len(productIDs))
	for i, id := range productIDs {
		products = append(products, storefront.GenericStoreProduct{
			ID:    id,
			Title: id,
			Price: strconv.Itoa(((i*7)%len(productIDs) + 1) * 100),
			Type:  entity.ProductConsumable,
		})
	}
	return products
}

// queryOwned asks the store for purchases completed but not yet reconciled.
func queryOwned(ctx context.Context, providerName string, store provider.Adapter) {
	types := []entity.ProductType{entity.ProductConsumable}
	if providerName == "onestore" {
		// OneStore scopes owned-purchase queries by native type.
		types = append(types, entity.ProductSubscription)
	}
	for _, t := range types {
		if err := store.QueryOwnedPurchases(ctx, t); err != nil {
			logging.Logger.Error("Owned purchase query failed", zap.Error(err))
		}
	}
}
