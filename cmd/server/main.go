package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"gl-reconciliation-backend/internal/client"
	"gl-reconciliation-backend/internal/config"
	"gl-reconciliation-backend/internal/handler"
	"gl-reconciliation-backend/internal/platform/database"
	"gl-reconciliation-backend/internal/repository"
	"gl-reconciliation-backend/internal/routes"
	"gl-reconciliation-backend/internal/service"
)

func main() {
	// Local development convenience; absent .env files are fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg)

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting GL reconciliation service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		DSN:      cfg.Database.DSN(),
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	// NATS is optional: with no URL configured, workflow events are dropped.
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = nats.Connect(cfg.NATS.URL,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unavailable; notifications disabled")
		} else {
			defer natsConn.Close()
			log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
		}
	}
	publisher := client.NewNotificationPublisher(natsConn, log)

	lineRepo := repository.NewLedgerLineRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	decisionRepo := repository.NewDecisionRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	responsibilityRepo := repository.NewResponsibilityRepository(db)

	resolver := service.NewResponsibilityResolver(responsibilityRepo)
	workflowService := service.NewWorkflowService(
		lineRepo, commentRepo, decisionRepo, batchRepo,
		publisher, cfg.DefaultVarianceThreshold, log)
	ingestService := service.NewIngestService(
		lineRepo, batchRepo, resolver, responsibilityRepo,
		publisher, cfg.DefaultVarianceThreshold, log)

	httpHandler := handler.NewHTTPHandler(workflowService, ingestService, log)
	router := routes.Setup(cfg, httpHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Service.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out zerolog.ConsoleWriter
	if cfg.Service.Environment == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(out).Level(level).With().
			Timestamp().
			Str("service", cfg.Service.Name).
			Logger()
	}

	return zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Logger()
}
