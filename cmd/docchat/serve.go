package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/lhs544/University-administrative-AI-document-review-automation/internal/api/http"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/api/http/handlers"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/auth"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/config"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/conversation"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/events"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/observability"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/persistence"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/repository"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/service"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/worker"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var attempts repository.UploadAttemptRepository
	if pool != nil {
		attempts = repository.NewUploadAttemptRepository(pool)
	}
	var transcripts repository.TranscriptRepository
	if client := redis.Handle(); client != nil {
		transcripts = repository.NewTranscriptRepository(client, cfg.Redis.TranscriptTTL())
	}

	catalog, err := loadCatalog(ctx, cfg.Chat, logger)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	docs := newDocServerClient(cfg, logger)
	dispatcher := events.NewInMemoryDispatcher(logger)

	auditService := service.NewAuditService(service.AuditDependencies{
		Dispatcher: dispatcher,
		Attempts:   attempts,
		Metrics:    metrics,
		Logger:     logger,
		Config:     cfg.Notification,
	})
	worker.StartAuditWorker(auditService)

	chatService := service.NewChatService(service.ChatDependencies{
		DocServers:      func(session string) conversation.DocServer { return docs.WithSession(session) },
		Catalog:         catalog,
		Dispatcher:      dispatcher,
		Transcripts:     transcripts,
		Metrics:         metrics,
		Logger:          logger,
		Poll:            pollOptions(cfg.Chat, logger),
		Location:        cfg.Chat.Location(),
		StatusListLimit: cfg.Chat.StatusListLimit,
		IdleTTL:         cfg.Chat.IdleTTL(),
	})

	janitor, err := worker.NewSessionJanitor(cfg.Chat.JanitorSchedule, chatService, logger)
	if err != nil {
		return err
	}
	go janitor.Run(ctx)

	authService := service.NewAuthService(cfg.Auth, docs)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager())

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: cfg.App.BodyLimitMB * 1024 * 1024,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.App.CORSOrigins)

	readiness := map[string]handlers.Pinger{"docserver": docs}
	if pool != nil {
		readiness["postgres"] = pg
	}
	if redis != nil {
		readiness["redis"] = redis
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Auth: handlers.NewAuthHandler(authService, func(ctx context.Context, session string) (*domain.Member, error) {
			return docs.WithSession(session).Me(ctx)
		}),
		Chat:           handlers.NewChatHandler(chatService),
		Ops:            handlers.NewOpsHandler(chatService, attempts),
		AuthMiddleware: authMiddleware,
		Registry:       metrics.Registry(),
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("fiber listen: %w", err)
	case sig := <-waitForSignal():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := chatService.Shutdown(shutdownCtx); err != nil {
		logger.Warn("background polls did not stop in time", zap.Error(err))
	}
	return nil
}

func waitForSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
