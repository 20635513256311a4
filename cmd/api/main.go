package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/campusdesk/servicedesk/internal/api/http"
	"github.com/campusdesk/servicedesk/internal/api/http/handlers"
	"github.com/campusdesk/servicedesk/internal/auth"
	"github.com/campusdesk/servicedesk/internal/config"
	"github.com/campusdesk/servicedesk/internal/events"
	"github.com/campusdesk/servicedesk/internal/observability"
	"github.com/campusdesk/servicedesk/internal/persistence"
	"github.com/campusdesk/servicedesk/internal/repository"
	"github.com/campusdesk/servicedesk/internal/service"
	"github.com/campusdesk/servicedesk/internal/sla"
	"github.com/campusdesk/servicedesk/internal/worker"
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
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool, cfg.SLA.TicketPrefix)
	dispositionRepo := repository.NewDispositionRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()

	natsBridge, err := events.NewNATSBridge(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
	if err != nil {
		logger.Fatal("failed to connect nats", zap.Error(err))
	}
	natsBridge.Register(dispatcher)
	defer natsBridge.Close()

	policy := sla.NewPolicy(cfg.SLA)

	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo: ticketRepo,
		UserRepo:   userRepo,
		AuditRepo:  auditRepo,
		Policy:     policy,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	dispositionService := service.NewDispositionService(service.DispositionDependencies{
		TicketRepo:      ticketRepo,
		DispositionRepo: dispositionRepo,
		UserRepo:        userRepo,
		AuditRepo:       auditRepo,
		Policy:          policy,
		Workflow:        cfg.Workflow,
		Dispatcher:      dispatcher,
		Logger:          logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo: ticketRepo,
		UserRepo:   userRepo,
		AuditRepo:  auditRepo,
		Redis:      redis.Client,
		Workflow:   cfg.Workflow,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	notificationService := service.NewNotificationService(notificationRepo, logger)
	notificationService.Register(dispatcher)

	slaMonitor := worker.NewSLAMonitor(worker.SLAMonitorDependencies{
		TicketRepo: ticketRepo,
		Redis:      redis.Client,
		Dispatcher: dispatcher,
		Workflow:   cfg.Workflow,
		Logger:     logger,
	})
	go slaMonitor.Run(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewMiddleware(tokens, userRepo)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Users:          handlers.NewUsersHandler(userRepo, tokens),
		Tickets:        handlers.NewTicketsHandler(lifecycleService),
		Dispositions:   handlers.NewDispositionsHandler(dispositionService, assignmentService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
