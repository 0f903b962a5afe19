package activities

import (
	"context"
	"fmt"
	"path/filepath"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"dev/bravebird/page-verifier/pkg/browser"
	"dev/bravebird/page-verifier/pkg/models"
	"dev/bravebird/page-verifier/pkg/temporal/workflows"
	"dev/bravebird/page-verifier/pkg/verifier"
)

// ResultStore persists finished verifications
type ResultStore interface {
	SaveResult(ctx context.Context, result models.VerificationResult) error
}

// Activities holds activity implementations
type Activities struct {
	Browser       browser.Config
	ScreenshotDir string
	Store         ResultStore // Optional

	// Launch overrides how browsers are started; nil uses rod
	Launch func(cfg browser.Config) verifier.LaunchFunc
}

// NewActivities creates new activities
func NewActivities(cfg browser.Config, screenshotDir string, store ResultStore) *Activities {
	return &Activities{
		Browser:       cfg,
		ScreenshotDir: screenshotDir,
		Store:         store,
		Launch:        verifier.RodLauncher,
	}
}

// VerifyPageActivity runs the compound calculator verification once.
// Screenshots go to a directory named after the run.
func (a *Activities) VerifyPageActivity(ctx context.Context, input models.VerificationInput) (models.VerificationResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Verifying page", "runID", input.RunID, "baseURL", input.BaseURL, "headless", input.Headless)

	if input.BaseURL == "" {
		return models.VerificationResult{}, temporal.NewNonRetryableApplicationError("base URL is required", workflows.ErrInvalidInput, nil)
	}

	cfg := a.Browser
	cfg.Headless = input.Headless

	outDir := filepath.Join(a.ScreenshotDir, input.RunID)
	v := verifier.New(input.BaseURL, verifier.CompoundPlan(verifier.PlanOptions{
		OutDir:      outDir,
		CheckResult: input.CheckResult,
	}), logger)

	// Heartbeats carry every step finished so far for progress streams
	var done []models.StepResult
	v.OnStep = func(step models.StepResult) {
		done = append(done, step)
		activity.RecordHeartbeat(ctx, done)
	}

	launch := a.Launch
	if launch == nil {
		launch = verifier.RodLauncher
	}
	result := verifier.NewDriver(launch(cfg), v, outDir, logger).Run(ctx, input.RunID)

	// The browser never started: let the retry policy try again
	if !result.OK() && result.FailedStep < 0 && len(result.Steps) == 0 {
		return result, temporal.NewApplicationError(fmt.Sprintf("browser unavailable: %s", result.ErrorMessage), workflows.ErrBrowserLaunch)
	}

	return result, nil
}

// RecordResultActivity stores a finished result when a store is configured
func (a *Activities) RecordResultActivity(ctx context.Context, result models.VerificationResult) error {
	if a.Store == nil {
		return nil
	}

	logger := activity.GetLogger(ctx)
	logger.Info("Recording verification result", "runID", result.RunID, "status", result.Status)

	if err := a.Store.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}
