package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/log"

	"dev/bravebird/page-verifier/pkg/models"
)

var (
	// ErrNotVisible marks a visibility check that ran out of time
	ErrNotVisible = errors.New("text not visible")
	// ErrAmbiguous marks a strict visibility check matching several elements
	ErrAmbiguous = errors.New("text matches more than one element")
)

// Page is the subset of a browser tab the verifier drives
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisibleText(ctx context.Context, text string, first bool) (int, error)
	Screenshot(ctx context.Context, path string, fullPage bool) error
}

// StepError reports which check of a plan failed
type StepError struct {
	Index int
	Check models.Check
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s %q): %v", e.Index+1, e.Check.Kind, e.Check.Target, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Verifier runs a plan of checks against a page
type Verifier struct {
	BaseURL string
	Plan    []models.Check
	Logger  log.Logger

	// OnStep, when set, is called after every executed check
	OnStep func(models.StepResult)
}

// New creates a verifier for baseURL
func New(baseURL string, plan []models.Check, logger log.Logger) *Verifier {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Verifier{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Plan:    plan,
		Logger:  logger,
	}
}

// Run executes the plan in order and stops at the first failing check.
// The returned steps cover every check that was attempted.
func (v *Verifier) Run(ctx context.Context, page Page) ([]models.StepResult, error) {
	steps := make([]models.StepResult, 0, len(v.Plan))

	for i, check := range v.Plan {
		start := time.Now()
		err := v.execute(ctx, page, check)

		step := models.StepResult{
			Index:    i,
			Kind:     check.Kind,
			Target:   check.Target,
			Status:   models.StatusSuccess,
			Duration: time.Since(start).Milliseconds(),
		}
		if err != nil {
			step.Status = models.StatusFailed
			step.ErrorMessage = err.Error()
		}
		steps = append(steps, step)
		if v.OnStep != nil {
			v.OnStep(step)
		}

		if err != nil {
			v.logger().Warn("Check failed", "step", i+1, "kind", check.Kind, "target", check.Target, "error", err)
			return steps, &StepError{Index: i, Check: check, Err: err}
		}
		v.logger().Debug("Check passed", "step", i+1, "kind", check.Kind, "target", check.Target, "duration_ms", step.Duration)
	}

	return steps, nil
}

func (v *Verifier) execute(ctx context.Context, page Page, check models.Check) error {
	switch check.Kind {
	case models.CheckNavigate:
		return page.Navigate(ctx, v.URL(check.Target))

	case models.CheckVisibleText:
		n, err := page.WaitVisibleText(ctx, check.Target, check.First)
		if err != nil {
			// Only a timeout of the check itself means the text is missing
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("%w: %w", ErrNotVisible, err)
			}
			return err
		}
		if n > 1 {
			return fmt.Errorf("%w: %d matches", ErrAmbiguous, n)
		}
		return nil

	case models.CheckScreenshot:
		return page.Screenshot(ctx, check.Target, true)

	default:
		return fmt.Errorf("unsupported check kind: %s", check.Kind)
	}
}

// URL resolves path against the base URL. Absolute URLs pass through.
func (v *Verifier) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return v.BaseURL + path
}

func (v *Verifier) logger() log.Logger {
	if v.Logger == nil {
		return nopLogger{}
	}
	return v.Logger
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
