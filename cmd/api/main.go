package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/snoutos/message-router/internal/api/http"
	"github.com/snoutos/message-router/internal/api/http/handlers"
	"github.com/snoutos/message-router/internal/auth"
	"github.com/snoutos/message-router/internal/config"
	"github.com/snoutos/message-router/internal/events"
	"github.com/snoutos/message-router/internal/observability"
	"github.com/snoutos/message-router/internal/persistence"
	"github.com/snoutos/message-router/internal/repository"
	"github.com/snoutos/message-router/internal/service"
	"github.com/snoutos/message-router/internal/sms"
	"github.com/snoutos/message-router/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	numberRepo := repository.NewNumberRepository(pool)
	threadRepo := repository.NewThreadRepository(pool)
	messageRepo := repository.NewMessageEventRepository(pool)
	windowRepo := repository.NewWindowRepository(pool)
	overrideRepo := repository.NewOverrideRepository(pool)
	offerRepo := repository.NewOfferRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	metricsRepo := repository.NewMetricsRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	sitterRepo := repository.NewSitterRepository(pool)
	clientRepo := repository.NewClientRepository(pool)
	operatorRepo := repository.NewOperatorRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	dispatcher := events.NewInMemoryDispatcher()
	provider := sms.NewTwilioProvider(cfg.Twilio, logger)

	resolver := service.NewResolverService(service.ResolverDependencies{
		NumberRepo: numberRepo,
		ThreadRepo: threadRepo,
		SitterRepo: sitterRepo,
		ClientRepo: clientRepo,
	})
	routing := service.NewRoutingService(service.RoutingDependencies{
		ThreadRepo:   threadRepo,
		OverrideRepo: overrideRepo,
		WindowRepo:   windowRepo,
		AuditRepo:    auditRepo,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	metricsService := service.NewMetricsService(offerRepo, metricsRepo, logger)
	offerService := service.NewOfferService(service.OfferDependencies{
		OfferRepo:   offerRepo,
		BookingRepo: bookingRepo,
		MessageRepo: messageRepo,
		ThreadRepo:  threadRepo,
		AuditRepo:   auditRepo,
		TxRunner:    txRunner,
		Metrics:     metricsService,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		WindowRepo: windowRepo,
		ThreadRepo: threadRepo,
		SitterRepo: sitterRepo,
		AuditRepo:  auditRepo,
		TxRunner:   txRunner,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	webhookService := service.NewWebhookService(service.WebhookDependencies{
		Provider:    provider,
		Resolver:    resolver,
		Routing:     routing,
		Offers:      offerService,
		MessageRepo: messageRepo,
		ThreadRepo:  threadRepo,
		AuditRepo:   auditRepo,
		Dedup:       redis,
		Dispatcher:  dispatcher,
		Logger:      logger,
		WebhookURL:  cfg.Twilio.WebhookURL,
	})
	messageService := service.NewMessageService(service.MessageDependencies{
		Provider:    provider,
		MessageRepo: messageRepo,
		ThreadRepo:  threadRepo,
		AuditRepo:   auditRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
		DefaultFrom: cfg.Twilio.DefaultFromE164,
	})
	authService := service.NewAuthService(*cfg, operatorRepo)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), operatorRepo)

	calendarService := service.NewCalendarService(cfg.Calendar, logger)
	calendarWorker := worker.NewCalendarWorker(calendarService, auditRepo, logger)
	calendarWorker.Register(dispatcher)

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{DisableStartupMessage: cfg.App.Env == "production"})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Webhooks:       handlers.NewWebhookHandler(webhookService),
		Auth:           handlers.NewAuthHandler(authService),
		Routing:        handlers.NewRoutingHandler(routing, overrideRepo, auditRepo),
		Assignments:    handlers.NewAssignmentsHandler(assignmentService),
		Offers:         handlers.NewOffersHandler(offerService, metricsService),
		Messages:       handlers.NewMessagesHandler(messageService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
