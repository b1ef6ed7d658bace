package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gigstage/settlement_api/internal/cache"
	"github.com/gigstage/settlement_api/internal/config"
	"github.com/gigstage/settlement_api/internal/database"
	"github.com/gigstage/settlement_api/internal/handler"
	"github.com/gigstage/settlement_api/internal/middleware"
	"github.com/gigstage/settlement_api/internal/repository"
	"github.com/gigstage/settlement_api/internal/service"
	"github.com/gigstage/settlement_api/internal/sse"
	"github.com/gigstage/settlement_api/internal/worker"
	"github.com/gigstage/settlement_api/pkg/paygate"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("policy", cfg.Policy.Version).Msg("starting settlement api")

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(1)
	}
	defer db.Close()

	// 4. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 5. Connect Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	eventCache := cache.NewEventCache(redisClient)

	// 6. Initialize gateway client
	gateway := paygate.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.KeySecret)

	// 7. Initialize repositories
	bookingRepo := repository.NewBookingRepository(db)
	escrowRepo := repository.NewEscrowRepository(db)
	stageRepo := repository.NewStageRepository(db)
	webhookLogRepo := repository.NewWebhookLogRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	clientRepo := repository.NewClientRepository(db)
	adminRepo := repository.NewAdminUserRepository(db)

	// 8. Initialize SSE hub for admin real-time updates
	sseHub := sse.NewHub()

	// 9. Initialize services
	calc := service.NewDistributionCalculator(cfg.Policy)
	compliance := service.NewComplianceService(cfg.Policy)
	notifier := service.NewNotificationService(cfg.Notifier, notificationRepo, sse.NewHubBroadcaster(sseHub))
	ledgerSvc := service.NewLedgerService(ledgerRepo, bookingRepo, cfg.Policy)
	escrowSvc := service.NewEscrowService(escrowRepo, bookingRepo, stageRepo, payoutRepo, gateway, calc)
	releaseSvc := service.NewReleaseService(
		escrowRepo, bookingRepo, stageRepo, payoutRepo, recipientRepo,
		compliance, calc, ledgerSvc, notifier, cfg.Policy, cfg.Worker.PayoutMaxRetry,
	)
	payoutSvc := service.NewPayoutService(payoutRepo, recipientRepo, gateway, notifier, cfg.Worker)
	webhookSvc := service.NewWebhookService(
		webhookLogRepo, eventCache, escrowRepo, bookingRepo,
		payoutSvc, notifier, cfg.Webhook, cfg.Gateway,
	)
	disputeSvc := service.NewDisputeService(bookingRepo, escrowRepo, stageRepo, notifier, cfg.Policy)
	authSvc := service.NewAuthService(clientRepo)
	adminAuthSvc := service.NewAdminAuthService(adminRepo)

	// 10. Initialize handlers
	handlers := &Handlers{
		Health:     handler.NewHealthHandler(db, redisClient),
		Webhook:    handler.NewWebhookHandler(webhookSvc),
		Settlement: handler.NewSettlementHandler(escrowSvc, releaseSvc, disputeSvc),
		Admin:      handler.NewAdminHandler(escrowSvc, disputeSvc, payoutSvc, ledgerSvc, authSvc, adminAuthSvc),
		Auth:       handler.NewAuthHandler(adminAuthSvc),
		SSE:        handler.NewSSEHandler(sseHub),
	}

	// 11. Initialize middleware
	authMw := middleware.NewAuthMiddleware(authSvc)
	jwtMw := middleware.NewJWTMiddleware()

	// 12. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware())
	setupRoutes(router, handlers, authMw, jwtMw)

	// 13. Context that stops background workers on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 14. Start workers
	go worker.NewReleaseWorker(releaseSvc, cfg.Worker.ReleaseInterval, cfg.Worker.ReleaseBatchSize).Start(ctx)
	go worker.NewPayoutWorker(payoutSvc, cfg.Worker.PayoutInterval, cfg.Worker.PayoutBatchSize).Start(ctx)
	go worker.NewTransferCheckWorker(payoutSvc, cfg.Worker.TransferCheckInterval, cfg.Worker.PayoutBatchSize).Start(ctx)

	// 15. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 16. Wait for interrupt signal, then shut down gracefully
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health     *handler.HealthHandler
	Webhook    *handler.WebhookHandler
	Settlement *handler.SettlementHandler
	Admin      *handler.AdminHandler
	Auth       *handler.AuthHandler
	SSE        *handler.SSEHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, authMiddleware *middleware.AuthMiddleware, jwtMiddleware *middleware.JWTMiddleware) {
	// Gateway callbacks: authenticated by HMAC signature, not API key.
	router.POST("/webhooks/payment", handlers.Webhook.HandlePayment)
	router.POST("/webhooks/payout", handlers.Webhook.HandlePayout)
	router.POST("/webhooks/dispute", handlers.Webhook.HandleDispute)

	router.GET("/v1/health", handlers.Health.GetHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Collaborator routes (protected with client API key)
	v1 := router.Group("/v1")
	v1.Use(authMiddleware.Handle())
	{
		v1.POST("/estimate", handlers.Settlement.Estimate)
		v1.POST("/bookings/:bookingId/orders", handlers.Settlement.CreateOrder)
		v1.GET("/bookings/:bookingId/escrow", handlers.Settlement.GetEscrow)
		v1.POST("/bookings/:bookingId/complete", handlers.Settlement.CompleteBooking)
		v1.POST("/bookings/:bookingId/dispute", handlers.Settlement.OpenDispute)
	}

	// Admin routes
	router.POST("/admin/login", handlers.Auth.Login)
	// JWT is validated inside the handler (EventSource passes it as a query param)
	router.GET("/admin/events", handlers.SSE.Stream)
	admin := router.Group("/admin")
	admin.Use(jwtMiddleware.Handle())
	{
		admin.POST("/bookings/:bookingId/dispute/resolve", handlers.Admin.ResolveDispute)
		admin.POST("/bookings/:bookingId/hold", handlers.Admin.SetPayoutHold)
		admin.POST("/bookings/:bookingId/cancel", handlers.Admin.CancelBooking)
		admin.GET("/bookings/:bookingId/ledger", handlers.Admin.GetLedger)
		admin.GET("/bookings/:bookingId/escrow", handlers.Admin.GetEscrow)
		admin.POST("/payouts/:transferId/requeue", handlers.Admin.RequeueDeadJob)
		admin.POST("/clients", handlers.Admin.CreateClient)
		admin.POST("/users", handlers.Admin.CreateAdminUser)
	}
}

func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
