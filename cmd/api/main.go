package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"

	"dev/bravebird/page-verifier/pkg/api"
	"dev/bravebird/page-verifier/pkg/config"
	"dev/bravebird/page-verifier/pkg/database"
)

func main() {
	logger := sdklog.NewStructuredLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// Load environment variables from .env file
	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("Could not read .env", "error", err)
	}
	logger.Info("Starting Page Verifier API Server")

	cfg, err := config.LoadServiceConfig(os.Getenv)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(2)
	}

	// Initialize database
	var store api.RunStore
	if cfg.MySQLDSN != "" {
		db, err := database.New(cfg.MySQLDSN)
		if err != nil {
			logger.Warn("Failed to connect to database, running without run history", "error", err)
		} else {
			defer db.Close()
			if err := db.Migrate(context.Background()); err != nil {
				logger.Warn("Failed to migrate database", "error", err)
			}
			store = db
		}
	}

	// Initialize Temporal client
	temporalClient, err := client.Dial(client.Options{
		HostPort: cfg.TemporalHost,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("Failed to create Temporal client", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	handlers := api.NewHandlers(store, temporalClient, cfg.Verify, cfg.ScreenshotDir)
	router := api.NewRouter(handlers)

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     c.Handler(router),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("API server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}
