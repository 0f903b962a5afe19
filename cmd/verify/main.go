package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	sdklog "go.temporal.io/sdk/log"

	"dev/bravebird/page-verifier/pkg/browser"
	"dev/bravebird/page-verifier/pkg/config"
	"dev/bravebird/page-verifier/pkg/database"
	"dev/bravebird/page-verifier/pkg/models"
	"dev/bravebird/page-verifier/pkg/verifier"
)

var version = "0.1.0"

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	// Load environment variables from .env file
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not read .env: %v\n", err)
	}

	app := newApp(verifyCmd{
		getenv: os.Getenv,
		launch: verifier.RodLauncher,
		stdout: os.Stdout,
		stderr: os.Stderr,
	})

	if err := app.Run(os.Args); err != nil {
		// cli.Exit errors exit inside Run, so this is a usage error
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfig)
	}
}

// verifyCmd holds what the command reads from its surroundings
type verifyCmd struct {
	getenv func(string) string
	launch func(browser.Config) verifier.LaunchFunc
	stdout io.Writer
	stderr io.Writer
}

func newApp(cmd verifyCmd) *cli.App {
	return &cli.App{
		Name:    "verify",
		Usage:   "Smoke test the compound calculator page in a headless browser",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base-url", Usage: "application root URL"},
			&cli.StringFlag{Name: "out-dir", Usage: "directory for screenshots"},
			&cli.DurationFlag{Name: "timeout", Usage: "navigation and screenshot timeout"},
			&cli.DurationFlag{Name: "visible-timeout", Usage: "wait for each expected text"},
			&cli.BoolFlag{Name: "headless", Usage: "run the browser without a window", Value: true},
			&cli.BoolFlag{Name: "check-result", Usage: "also check the default future value"},
			&cli.BoolFlag{Name: "debug", Usage: "log every step"},
		},
		Writer:    cmd.stdout,
		ErrWriter: cmd.stderr,
		Action:    cmd.run,
	}
}

func (cmd verifyCmd) run(c *cli.Context) error {
	cfg, err := loadConfig(c, cmd.getenv)
	if err != nil {
		return cli.Exit("Invalid configuration: "+err.Error(), exitConfig)
	}

	level := slog.LevelInfo
	if c.Bool("debug") {
		level = slog.LevelDebug
	}
	logger := sdklog.NewStructuredLogger(slog.New(slog.NewTextHandler(cmd.stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := openHistory(ctx, cfg.MySQLDSN, logger)
	if db != nil {
		defer db.Close()
	}

	bcfg := browser.DefaultConfig()
	bcfg.Headless = cfg.Headless
	bcfg.Bin = cfg.ChromeBin
	bcfg.Timeout = cfg.Timeout
	bcfg.VisibleTimeout = cfg.Visible

	v := verifier.New(cfg.BaseURL, verifier.CompoundPlan(verifier.PlanOptions{
		OutDir:      cfg.OutDir,
		CheckResult: cfg.CheckResult,
	}), logger)
	v.OnStep = func(step models.StepResult) {
		logger.Debug("Step finished", "index", step.Index, "kind", step.Kind, "target", step.Target, "status", step.Status)
	}
	driver := verifier.NewDriver(cmd.launch(bcfg), v, cfg.OutDir, logger)

	runID := ""
	if db != nil {
		runID = createRun(ctx, db, cfg.BaseURL, logger)
	}

	result := driver.Run(ctx, runID)

	if db != nil && runID != "" {
		// The run context may already be canceled by a signal
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := db.SaveResult(saveCtx, result); err != nil {
			logger.Warn("Failed to record result", "runID", runID, "error", err)
		}
		cancel()
	}

	code := exitCode(result)
	if code != exitOK {
		return cli.Exit(failureMessage(result), code)
	}

	fmt.Fprintf(cmd.stdout, "Verification passed in %dms, screenshot saved to %s\n", result.Duration, result.ScreenshotPath)
	return nil
}

// exitCode maps a finished run to the process status
func exitCode(result models.VerificationResult) int {
	if result.OK() {
		return exitOK
	}
	return exitFailed
}

func failureMessage(result models.VerificationResult) string {
	msg := fmt.Sprintf("Verification failed: %s", result.ErrorMessage)
	if result.ScreenshotPath != "" {
		msg += fmt.Sprintf(" (screenshot: %s)", result.ScreenshotPath)
	}
	return msg
}

// loadConfig reads the environment and lets explicitly set flags win
func loadConfig(c *cli.Context, getenv func(string) string) (config.VerifyConfig, error) {
	cfg, err := config.LoadVerifyConfig(getenv)
	if err != nil {
		return cfg, err
	}

	if c.IsSet("base-url") {
		cfg.BaseURL = c.String("base-url")
	}
	if c.IsSet("out-dir") {
		cfg.OutDir = c.String("out-dir")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("visible-timeout") {
		cfg.Visible = c.Duration("visible-timeout")
	}
	if c.IsSet("headless") {
		cfg.Headless = c.Bool("headless")
	}
	if c.IsSet("check-result") {
		cfg.CheckResult = c.Bool("check-result")
	}

	return cfg, cfg.Validate()
}

// openHistory connects to MySQL when configured. A missing database only
// disables run history.
func openHistory(ctx context.Context, dsn string, logger sdklog.Logger) *database.DB {
	if dsn == "" {
		return nil
	}

	db, err := database.New(dsn)
	if err != nil {
		logger.Warn("Failed to connect to database, running without history", "error", err)
		return nil
	}
	if err := db.Migrate(ctx); err != nil {
		logger.Warn("Failed to migrate database, running without history", "error", err)
		db.Close()
		return nil
	}
	return db
}

func createRun(ctx context.Context, db *database.DB, baseURL string, logger sdklog.Logger) string {
	run := &models.VerificationRun{
		ID:      uuid.New().String(),
		BaseURL: baseURL,
		Status:  models.StatusRunning,
	}
	if err := db.CreateRun(ctx, run); err != nil {
		logger.Warn("Failed to create run record", "error", err)
		return ""
	}
	return run.ID
}
