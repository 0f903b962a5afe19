package verifier

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/log"

	"dev/bravebird/page-verifier/pkg/browser"
	"dev/bravebird/page-verifier/pkg/models"
)

// Browser is a launched browser the driver owns for one run
type Browser interface {
	OpenPage(ctx context.Context) (Page, error)
	Close() error
}

// LaunchFunc starts a browser
type LaunchFunc func(ctx context.Context) (Browser, error)

// RodLauncher launches headless Chrome through rod
func RodLauncher(cfg browser.Config) LaunchFunc {
	return func(ctx context.Context) (Browser, error) {
		s, err := browser.Launch(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return rodBrowser{s}, nil
	}
}

type rodBrowser struct {
	*browser.Session
}

func (b rodBrowser) OpenPage(ctx context.Context) (Page, error) {
	return b.Session.OpenPage(ctx)
}

// Driver runs one verification from browser launch to teardown
type Driver struct {
	Launch          LaunchFunc
	Verifier        *Verifier
	ErrorScreenshot string // Written instead of the plan's screenshot when a check fails
	Logger          log.Logger
}

// NewDriver creates a driver writing its error screenshot into outDir
func NewDriver(launch LaunchFunc, v *Verifier, outDir string, logger log.Logger) *Driver {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Driver{
		Launch:          launch,
		Verifier:        v,
		ErrorScreenshot: filepath.Join(outDir, ErrorScreenshot),
		Logger:          logger,
	}
}

// Run launches a browser, opens a page, runs the verifier and closes the
// browser on every path. The browser is closed exactly once. runID may be
// empty, in which case a new one is generated.
func (d *Driver) Run(ctx context.Context, runID string) models.VerificationResult {
	if runID == "" {
		runID = uuid.New().String()
	}
	logger := d.logger()

	result := models.VerificationResult{
		RunID:      runID,
		Status:     models.StatusRunning,
		FailedStep: -1,
		StartedAt:  time.Now(),
	}
	finish := func() models.VerificationResult {
		result.Duration = time.Since(result.StartedAt).Milliseconds()
		return result
	}

	logger.Info("Launching browser", "runID", runID)
	b, err := d.Launch(ctx)
	if err != nil {
		// No page exists, so there is nothing to capture
		logger.Error("Browser launch failed", "runID", runID, "error", err)
		result.Status = models.StatusFailed
		result.ErrorMessage = err.Error()
		return finish()
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("Browser close failed", "runID", runID, "error", err)
		}
		logger.Info("Browser closed", "runID", runID)
	}()

	page, err := b.OpenPage(ctx)
	if err != nil {
		logger.Error("Page creation failed", "runID", runID, "error", err)
		result.Status = models.StatusFailed
		result.ErrorMessage = err.Error()
		return finish()
	}

	steps, err := d.Verifier.Run(ctx, page)
	result.Steps = steps

	if err == nil {
		result.Status = models.StatusSuccess
		result.ScreenshotPath = lastScreenshot(d.Verifier.Plan)
		logger.Info("Verification passed", "runID", runID, "screenshot", result.ScreenshotPath)
		return finish()
	}

	result.Status = models.StatusFailed
	result.ErrorMessage = err.Error()
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		result.FailedStep = stepErr.Index
	}
	logger.Error("Verification failed", "runID", runID, "error", err)

	if d.ErrorScreenshot != "" {
		// Best effort; the check failure stays the reported cause
		if shotErr := page.Screenshot(context.WithoutCancel(ctx), d.ErrorScreenshot, false); shotErr != nil {
			logger.Warn("Error screenshot failed", "runID", runID, "error", shotErr)
			result.ErrorMessage = fmt.Sprintf("%s (error screenshot: %v)", result.ErrorMessage, shotErr)
		} else {
			result.ScreenshotPath = d.ErrorScreenshot
		}
	}

	return finish()
}

func (d *Driver) logger() log.Logger {
	if d.Logger == nil {
		return nopLogger{}
	}
	return d.Logger
}

func lastScreenshot(plan []models.Check) string {
	for i := len(plan) - 1; i >= 0; i-- {
		if plan[i].Kind == models.CheckScreenshot {
			return plan[i].Target
		}
	}
	return ""
}
