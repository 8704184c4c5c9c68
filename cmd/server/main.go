package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/rpattn/contentcore/internal/admin"
	"github.com/rpattn/contentcore/internal/auth"
	"github.com/rpattn/contentcore/internal/authz"
	"github.com/rpattn/contentcore/internal/config"
	"github.com/rpattn/contentcore/internal/content"
	"github.com/rpattn/contentcore/internal/db"
	"github.com/rpattn/contentcore/internal/export"
	"github.com/rpattn/contentcore/internal/history"
	"github.com/rpattn/contentcore/internal/ingestion"
	"github.com/rpattn/contentcore/internal/middleware"
	"github.com/rpattn/contentcore/internal/notify"
	"github.com/rpattn/contentcore/internal/repository"
	"github.com/rpattn/contentcore/internal/sensitivity"
	"github.com/rpattn/contentcore/internal/workflow"
)

const idempotencyRetention = 24 * time.Hour

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.Database, cfg.MigrationsPath); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Repositories
	events := repository.NewEventStore(conn.Pool)
	documents := repository.NewDocumentRepository(conn.Pool)
	contentTypes := repository.NewContentTypeRepository(conn.Pool)
	roles := repository.NewRoleRepository(conn.Pool)
	users := repository.NewUserRepository(conn.Pool)
	workflows := repository.NewWorkflowRepository(conn.Pool)
	idempotency := repository.NewIdempotencyStore(conn.Pool)
	importLogs := repository.NewImportLogRepository(conn.Pool)

	// Services
	authorizer := authz.NewResolver(roles, users, logger)
	filter := sensitivity.New()

	registry, err := workflow.NewRegistry(
		workflow.NewEmailAction(notify.NewLogEmailSender(logger)),
		workflow.NewSMSAction(notify.NewLogSMSSender(logger)),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build workflow action registry")
	}
	engine := workflow.NewEngine(workflows, registry, logger)

	contentService := content.NewService(events, documents, contentTypes, idempotency, authorizer, filter, engine, logger)
	historyService := history.NewService(events, documents, logger)
	importService := ingestion.NewService(contentTypes, contentService, importLogs, logger)
	exportService := export.NewService(contentService, contentTypes, logger)

	// HTTP surface
	mux := http.NewServeMux()
	content.NewHTTPHandler(contentService).Routes(mux)
	history.NewHTTPHandler(historyService, documents, authorizer).Routes(mux)
	workflow.NewHTTPHandler(engine, workflows, documents, authorizer).Routes(mux)
	admin.NewHTTPHandler(roles, users, authorizer).Routes(mux)
	ingestion.NewHTTPHandler(importService).Routes(mux)
	export.NewHTTPHandler(exportService).Routes(mux)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	handler := corsHandler.Handler(
		middleware.Logging(logger)(
			auth.Middleware(users)(mux),
		),
	)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Periodic idempotency key sweep
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := idempotency.PurgeOlderThan(ctx, idempotencyRetention); err != nil {
					logger.Warn().Err(err).Msg("failed to purge idempotency keys")
				}
			}
		}
	}()

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}
