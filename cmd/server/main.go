package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/strandhq/billing/internal"
	"github.com/strandhq/billing/internal/gateway"
	"github.com/strandhq/billing/internal/handler/api"
	"github.com/strandhq/billing/internal/handler/webhook"
	"github.com/strandhq/billing/internal/identity"
	"github.com/strandhq/billing/internal/middleware"
	"github.com/strandhq/billing/internal/postgres"
	"github.com/strandhq/billing/internal/router"
	"github.com/strandhq/billing/internal/routes"
	"github.com/strandhq/billing/internal/service"
	"github.com/strandhq/billing/internal/telemetry"
	"github.com/strandhq/billing/internal/worker"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	// Verify database connection
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := postgres.Connect(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize stores
	planStore := postgres.NewPlanStore(pool)
	paymentMethodStore := postgres.NewPaymentMethodStore(pool)
	subscriptionStore := postgres.NewSubscriptionStore(pool)
	invoiceStore := postgres.NewInvoiceStore(pool)
	paymentStore := postgres.NewPaymentStore(pool)

	// Initialize payment gateway
	var provider gateway.Provider
	if cfg.Gateway.UseMock {
		logger.Warn("Using mock payment gateway, no real charges will occur")
		provider = gateway.NewMockProvider()
	} else {
		logger.Info("Initializing Stripe payment gateway...")
		gatewayConfig := gateway.Config{
			APIKey:         cfg.Gateway.APIKey,
			WebhookSecret:  cfg.Gateway.WebhookSecret,
			MaxRetries:     3,
			TimeoutSeconds: 30,
		}
		stripeGateway, err := gateway.NewStripeGateway(gatewayConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize Stripe gateway: %w", err)
		}
		logger.Info("Stripe payment gateway initialized", "test_mode", gatewayConfig.IsTestMode())
		provider = stripeGateway
	}

	// Initialize business metrics
	telemetry.InitBusinessMetrics(cfg.Metrics.Namespace)

	// Initialize services
	catalogService := service.NewCatalogService(planStore)
	paymentMethodService := service.NewPaymentMethodService(paymentMethodStore, provider)
	invoiceService := service.NewInvoiceService(invoiceStore, paymentStore, provider, logger)
	subscriptionService := service.NewSubscriptionService(subscriptionStore, planStore, paymentMethodStore, invoiceService, provider, logger)
	tokenService := service.NewTokenService(planStore, paymentMethodStore, invoiceService, logger)
	summaryService := service.NewSummaryService(subscriptionStore, planStore, paymentMethodStore, invoiceStore, paymentStore)
	reconciler := service.NewReconciler(invoiceStore, subscriptionStore, logger)

	// Initialize identity verification
	verifier := identity.NewStaticVerifier(cfg.Auth.Credentials)

	// Handler dependencies
	apiDeps := routes.APIDeps{
		PlanHandler:          api.NewPlanHandler(catalogService),
		PaymentMethodHandler: api.NewPaymentMethodHandler(paymentMethodService),
		SubscriptionHandler:  api.NewSubscriptionHandler(subscriptionService),
		TokenHandler:         api.NewTokenHandler(tokenService),
		SummaryHandler:       api.NewSummaryHandler(summaryService),
		InvoiceHandler:       api.NewInvoiceHandler(invoiceService),
	}
	webhookDeps := routes.WebhookDeps{
		GatewayHandler: webhook.NewGatewayHandler(provider, reconciler),
	}

	// Prometheus HTTP metrics
	metrics := middleware.NewMetrics(cfg.Metrics.Namespace)

	opsDeps := routes.OpsDeps{
		MetricsHandler: metrics.Handler(),
		HealthHandler: func(w http.ResponseWriter, req *http.Request) {
			if err := pool.Ping(req.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("database unreachable"))
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		},
	}

	// Create router and register routes
	chain := []router.Middleware{
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		middleware.WithClientIP(),
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		chain = append(chain, router.CORS(cfg.CORSAllowedOrigins))
	}
	chain = append(chain,
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		middleware.RateLimit(middleware.DefaultRateLimiterConfig()),
		middleware.WithPrincipal(verifier),
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)
	r := router.New(chain...)

	routes.RegisterAPIRoutes(r, apiDeps)
	routes.RegisterWebhookRoutes(r, webhookDeps)
	routes.RegisterOpsRoutes(r, opsDeps)

	// Start renewal sweep worker
	if cfg.Renewal.Disabled {
		logger.Warn("Renewal sweep worker disabled")
	} else {
		renewalWorker := worker.NewWorker(subscriptionService, worker.Config{
			WorkerID:     cfg.Renewal.WorkerID,
			PollInterval: cfg.Renewal.PollInterval,
			Window:       cfg.Renewal.Window,
		}, logger)
		go func() {
			if err := renewalWorker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Renewal worker stopped", "error", err)
			}
		}()
	}

	// Start HTTP server with graceful shutdown
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting billing server", "address", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
