package verifier

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/page-verifier/pkg/models"
)

type fakeBrowser struct {
	page    *fakePage
	pageErr error
	closes  int
}

func (b *fakeBrowser) OpenPage(ctx context.Context) (Page, error) {
	if b.pageErr != nil {
		return nil, b.pageErr
	}
	return b.page, nil
}

func (b *fakeBrowser) Close() error {
	b.closes++
	return nil
}

func launchWith(b *fakeBrowser) LaunchFunc {
	return func(ctx context.Context) (Browser, error) {
		return b, nil
	}
}

func newTestDriver(b *fakeBrowser, outDir string) *Driver {
	v := New("http://localhost:3000", CompoundPlan(PlanOptions{OutDir: outDir}), nil)
	return NewDriver(launchWith(b), v, outDir, nil)
}

func TestDriver_Success(t *testing.T) {
	b := &fakeBrowser{page: compoundPage()}
	d := newTestDriver(b, "verification")

	result := d.Run(context.Background(), "run-1")

	assert.True(t, result.OK())
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, -1, result.FailedStep)
	assert.Len(t, result.Steps, 6)
	assert.Equal(t, filepath.Join("verification", SuccessScreenshot), result.ScreenshotPath)
	assert.Equal(t, []string{filepath.Join("verification", SuccessScreenshot)}, b.page.shots)
	assert.Equal(t, 1, b.closes)
}

func TestDriver_FailureWritesErrorScreenshot(t *testing.T) {
	b := &fakeBrowser{page: newFakePage(LabelTitle)}
	d := newTestDriver(b, "verification")

	result := d.Run(context.Background(), "")

	assert.False(t, result.OK())
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 2, result.FailedStep)
	assert.Contains(t, result.ErrorMessage, LabelPrincipal)

	errorShot := filepath.Join("verification", ErrorScreenshot)
	assert.Equal(t, errorShot, result.ScreenshotPath)
	assert.Equal(t, []string{errorShot}, b.page.shots)
	assert.Contains(t, b.page.calls, "screenshot "+errorShot+" full=false")
	assert.Equal(t, 1, b.closes)
}

func TestDriver_ErrorScreenshotFailureKeepsCause(t *testing.T) {
	page := compoundPage()
	page.navigateErr = errors.New("connection refused")
	page.shotErr = errors.New("target closed")
	b := &fakeBrowser{page: page}

	result := newTestDriver(b, "out").Run(context.Background(), "r")

	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Equal(t, 0, result.FailedStep)
	assert.Contains(t, result.ErrorMessage, "connection refused")
	assert.Contains(t, result.ErrorMessage, "target closed")
	assert.Empty(t, result.ScreenshotPath)
	assert.Equal(t, 1, b.closes)
}

func TestDriver_LaunchFailure(t *testing.T) {
	v := New("http://localhost:3000", CompoundPlan(PlanOptions{}), nil)
	d := NewDriver(func(ctx context.Context) (Browser, error) {
		return nil, errors.New("chrome not found")
	}, v, "out", nil)

	result := d.Run(context.Background(), "r")

	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Equal(t, -1, result.FailedStep)
	assert.Equal(t, "chrome not found", result.ErrorMessage)
	assert.Empty(t, result.Steps)
}

func TestDriver_PageFailureStillCloses(t *testing.T) {
	b := &fakeBrowser{pageErr: errors.New("no target")}
	result := newTestDriver(b, "out").Run(context.Background(), "r")

	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Equal(t, "no target", result.ErrorMessage)
	assert.Equal(t, 1, b.closes)
}

func TestDriver_RerunIsIdempotent(t *testing.T) {
	b := &fakeBrowser{page: compoundPage()}
	d := newTestDriver(b, "verification")

	first := d.Run(context.Background(), "a")
	second := d.Run(context.Background(), "b")

	require.True(t, first.OK())
	require.True(t, second.OK())
	assert.Equal(t, first.ScreenshotPath, second.ScreenshotPath)
	assert.Equal(t, 2, b.closes)
}
