package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"dev/bravebird/page-verifier/pkg/models"
)

const (
	// ProgressQuery returns the current VerificationResult of a running workflow
	ProgressQuery = "getProgress"

	VerifyPageActivityName   = "VerifyPageActivity"
	RecordResultActivityName = "RecordResultActivity"

	// ErrInvalidInput is the application error type for inputs that can never succeed
	ErrInvalidInput = "InvalidInputError"
	// ErrBrowserLaunch is the application error type for a browser that did not start
	ErrBrowserLaunch = "BrowserLaunchError"

	defaultTimeoutSeconds = 300
	defaultRetryAttempts  = 3
)

// PageVerificationWorkflow runs one page verification and records its result
func PageVerificationWorkflow(ctx workflow.Context, input models.VerificationInput) (models.VerificationResult, error) {
	logger := workflow.GetLogger(ctx)

	if input.RunID == "" {
		input.RunID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	logger.Info("Starting page verification workflow", "runID", input.RunID, "baseURL", input.BaseURL)

	result := models.VerificationResult{
		RunID:      input.RunID,
		Status:     models.StatusRunning,
		FailedStep: -1,
		StartedAt:  workflow.Now(ctx),
	}

	// Register query handler for real-time progress
	err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (models.VerificationResult, error) {
		return result, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
	}

	timeout := input.Timeout
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}
	attempts := input.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}

	// A failed check is a result, not an error, so only infrastructure
	// failures reach the retry policy
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: time.Duration(timeout) * time.Second,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        int32(attempts),
			NonRetryableErrorTypes: []string{ErrInvalidInput},
		},
	}
	verifyCtx := workflow.WithActivityOptions(ctx, activityOptions)

	var verified models.VerificationResult
	err = workflow.ExecuteActivity(verifyCtx, VerifyPageActivityName, input).Get(verifyCtx, &verified)
	switch {
	case err == nil:
		result = verified
	case temporal.IsCanceledError(err):
		result.Status = models.StatusCanceled
		result.ErrorMessage = "Verification canceled"
	default:
		result.Status = models.StatusFailed
		result.ErrorMessage = "Verification could not run: " + err.Error()
	}
	if result.Duration == 0 {
		result.Duration = workflow.Now(ctx).Sub(result.StartedAt).Milliseconds()
	}

	// Record even when the workflow itself was canceled
	recordCtx, _ := workflow.NewDisconnectedContext(ctx)
	recordCtx = workflow.WithActivityOptions(recordCtx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 5,
		},
	})
	if err := workflow.ExecuteActivity(recordCtx, RecordResultActivityName, result).Get(recordCtx, nil); err != nil {
		logger.Warn("Failed to record verification result", "runID", result.RunID, "error", err)
	}

	logger.Info("Workflow completed", "status", result.Status, "duration", result.Duration)
	return result, nil
}

// WorkflowID returns the Temporal workflow ID used for a run
func WorkflowID(runID string) string {
	return "page-verification-" + runID
}
