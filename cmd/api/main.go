package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apihttp "github.com/tiback/helpdesk/internal/api/http"
	"github.com/tiback/helpdesk/internal/api/http/handlers"
	"github.com/tiback/helpdesk/internal/auth"
	"github.com/tiback/helpdesk/internal/config"
	"github.com/tiback/helpdesk/internal/fanout"
	"github.com/tiback/helpdesk/internal/observability"
	"github.com/tiback/helpdesk/internal/persistence"
	"github.com/tiback/helpdesk/internal/repository"
	"github.com/tiback/helpdesk/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	postgres, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	defer postgres.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, postgres.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := postgres.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	actorRepo := repository.NewActorRepository(pool)
	txManager := persistence.NewTxManager(pool)

	hub := fanout.NewHub(cfg.Fanout.SubscriberBuffer, logger)
	var bridgeClient = redis.Client
	if !cfg.Fanout.RedisBridge {
		bridgeClient = nil
	}
	broker := fanout.NewBroker(hub, bridgeClient, logger)
	go func() {
		if err := broker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("fanout bridge stopped", zap.Error(err))
		}
	}()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	ticketLocks := service.NewTicketLocks()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		AssignmentRepo: assignmentRepo,
		AuditRepo:      auditRepo,
		Tx:             txManager,
		Publisher:      broker,
		Locks:          ticketLocks,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:     ticketRepo,
		AssignmentRepo: assignmentRepo,
		ActorRepo:      actorRepo,
		AuditRepo:      auditRepo,
		Tx:             txManager,
		Publisher:      broker,
		Locks:          ticketLocks,
	})
	commentService := service.NewCommentService(service.CommentDependencies{
		TicketRepo:     ticketRepo,
		AssignmentRepo: assignmentRepo,
		AuditRepo:      auditRepo,
		Publisher:      broker,
	})
	authService := service.NewAuthService(actorRepo, tokens, cfg.Auth.BcryptCost)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	apihttp.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	apihttp.RegisterRoutes(app, apihttp.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, postgres, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Assignments:    handlers.NewAssignmentsHandler(assignmentService),
		Comments:       handlers.NewCommentsHandler(commentService),
		WS:             handlers.NewWSHandler(hub, logger),
		AuthMiddleware: auth.NewMiddleware(tokens, actorRepo),
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = app.Shutdown()
	}()

	logger.Info("starting server", zap.String("addr", cfg.App.Addr()))
	if err := app.Listen(cfg.App.Addr()); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
