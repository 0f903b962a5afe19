package main

import (
	"context"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"dev/bravebird/page-verifier/pkg/browser"
	"dev/bravebird/page-verifier/pkg/config"
	"dev/bravebird/page-verifier/pkg/database"
	"dev/bravebird/page-verifier/pkg/temporal/activities"
	"dev/bravebird/page-verifier/pkg/temporal/workflows"
)

func main() {
	logger := sdklog.NewStructuredLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// Load environment variables from .env file
	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("Could not read .env", "error", err)
	}

	cfg, err := config.LoadServiceConfig(os.Getenv)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(2)
	}

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalHost,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("Failed to create Temporal client", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	// Run history is optional
	var store activities.ResultStore
	if cfg.MySQLDSN != "" {
		db, err := database.New(cfg.MySQLDSN)
		if err != nil {
			logger.Warn("Failed to connect to database, results will not be recorded", "error", err)
		} else {
			defer db.Close()
			if err := db.Migrate(context.Background()); err != nil {
				logger.Warn("Failed to migrate database", "error", err)
			}
			store = db
		}
	}

	bcfg := browser.DefaultConfig()
	bcfg.Bin = cfg.Verify.ChromeBin
	bcfg.Timeout = cfg.Verify.Timeout
	bcfg.VisibleTimeout = cfg.Verify.Visible

	acts := activities.NewActivities(bcfg, cfg.ScreenshotDir, store)

	// Each activity owns a whole browser, so keep concurrency low
	w := worker.New(c, config.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     2,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	w.RegisterWorkflow(workflows.PageVerificationWorkflow)
	w.RegisterActivity(acts)

	logger.Info("Starting Temporal worker", "taskQueue", config.TaskQueue, "temporalHost", cfg.TemporalHost, "screenshotDir", cfg.ScreenshotDir)

	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}
}
