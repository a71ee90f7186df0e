package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/DukeRupert/packs/internal"
	"github.com/DukeRupert/packs/internal/billing"
	"github.com/DukeRupert/packs/internal/csrf"
	"github.com/DukeRupert/packs/internal/email"
	"github.com/DukeRupert/packs/internal/events"
	"github.com/DukeRupert/packs/internal/handler"
	"github.com/DukeRupert/packs/internal/jobs"
	"github.com/DukeRupert/packs/internal/metrics"
	"github.com/DukeRupert/packs/internal/middleware"
	"github.com/DukeRupert/packs/internal/repository"
	"github.com/DukeRupert/packs/internal/service"
	"github.com/DukeRupert/packs/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository and stores
	repo := repository.New(db)

	metaStore, closeMetaStore, err := internal.OpenMetaStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeMetaStore()
	logger.Info("Meta store ready", "backend", cfg.MetaStore)

	fileStore, localStore, err := internal.OpenStorage(cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	nonces := csrf.NewNonces([]byte(cfg.NonceSecret), cfg.NonceLifetime)

	// Initialize services
	userService := service.NewUserService(repo, logger)
	membershipService := service.NewMembershipService(repo, logger)
	orderService := service.NewOrderService(db, repo, fileStore, cfg.DownloadURLTTL, logger)
	quotaService := service.NewQuotaService(metaStore, membershipService, nonces, logger)
	eligibilityService := service.NewEligibilityService(quotaService, orderService, logger)
	fulfillmentService := service.NewFulfillmentService(quotaService, membershipService, orderService, nonces, logger)
	resetService := service.NewResetService(quotaService, logger)

	// Background work shares one context and wait group
	var wg sync.WaitGroup
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	var jobWorker *worker.Worker
	if cfg.WorkerEnabled {
		jobWorker, err = startWorker(bgCtx, cfg, db, repo, logger)
		if err != nil {
			return err
		}
	}

	if err := startPaymentListeners(bgCtx, &wg, cfg, resetService, logger); err != nil {
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanupSessions(bgCtx, userService, logger)
	}()

	// Initialize middleware
	isSecure := !cfg.IsDevelopment()
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure, cfg.CartURL)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	authMw := middleware.NewAuthMiddleware(userService, cfg.AdminEmails, logger, isSecure)

	downloadStack := authMw.WithUser
	if cfg.DownloadRateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.DownloadRateLimit, time.Minute, logger)
		defer limiter.Stop()
		downloadStack = middleware.Stack(authMw.WithUser, middleware.NewRateLimitMiddleware(limiter, logger).Limit)
	}
	requireAdmin := middleware.Stack(authMw.WithUser, authMw.RequireUser, authMw.RequireAdmin)

	// Initialize handlers
	downloadHandler := handler.NewDownloadHandler(fulfillmentService, logger)
	purchaseHandler := handler.NewPurchaseHandler(orderService, eligibilityService, nonces, cfg.CartURL, logger)
	levelHandler := handler.NewLevelHandler(membershipService, quotaService, nonces, cfg.PackPluralLabel, isSecure, logger)
	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"database":  handler.PingFunc(db.PingContext),
		"metastore": metaStore,
	}, logger)

	var verifier billing.WebhookVerifier
	if cfg.StripeWebhookSecret != "" {
		verifier = billing.NewWebhookVerifier(cfg.StripeWebhookSecret)
	} else {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set, Stripe webhook disabled")
	}
	webhookHandler := handler.NewWebhookHandler(verifier, userService, membershipService, resetService, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	healthHandler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler(cfg.MetricsUsername, cfg.MetricsPassword))

	downloadHandler.RegisterRoutes(mux, downloadStack)
	purchaseHandler.RegisterRoutes(mux, authMw.WithUser)
	levelHandler.RegisterRoutes(mux, requireAdmin)
	webhookHandler.RegisterRoutes(mux)

	if localStore != nil {
		handler.NewFilesHandler(localStore, logger).RegisterRoutes(mux)
	}

	root := middleware.Stack(securityMw.Handler, loggingMw.Handler, metrics.Middleware)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-serverErr:
		logger.Error("Server failed", "error", err)
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	cancelBg()
	if jobWorker != nil {
		jobWorker.Stop()
	}
	wg.Wait()

	logger.Info("Graceful shutdown complete")
	return nil
}

func startWorker(ctx context.Context, cfg *internal.Config, db *sql.DB, repo *repository.Queries, logger *slog.Logger) (*worker.Worker, error) {
	mailer, err := email.NewSMTPMailer(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, cfg.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("mailer initialization failed: %w", err)
	}

	w, err := worker.New(db, repo, worker.Config{
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: cfg.WorkerPollInterval,
		JobTimeout:   cfg.WorkerJobTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("worker initialization failed: %w", err)
	}
	w.Register(jobs.NewSendReceiptHandler(repo, mailer, logger))
	w.Start(ctx)
	return w, nil
}

// startPaymentListeners runs the out-of-process payment event consumers.
// Each stops when ctx is cancelled.
func startPaymentListeners(ctx context.Context, wg *sync.WaitGroup, cfg *internal.Config, reset service.ResetService, logger *slog.Logger) error {
	if cfg.AMQPURL != "" {
		consumer := events.NewRabbitMQConsumer(events.RabbitMQConfig{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
			Queue:    cfg.AMQPQueue,
		}, reset, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("rabbitmq consumer stopped", "error", err)
			}
		}()
	}

	if cfg.PGNotifyEnabled {
		listener, err := events.NewPGListener(cfg.DatabaseUrl, reset, logger)
		if err != nil {
			return fmt.Errorf("pg listener initialization failed: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("pg listener stopped", "error", err)
			}
		}()
	}
	return nil
}

func cleanupSessions(ctx context.Context, users service.UserService, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := users.DeleteExpiredSessions(ctx); err != nil {
				logger.Error("failed to delete expired sessions", "error", err)
			}
		}
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
