package verifier

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/page-verifier/pkg/models"
)

// fakePage records calls and answers visibility checks from a table
type fakePage struct {
	calls       []string
	navigateErr error
	visible     map[string]int // text -> matches; absent means timeout
	shotErr     error
	shots       []string
}

func newFakePage(texts ...string) *fakePage {
	p := &fakePage{visible: make(map[string]int)}
	for _, text := range texts {
		p.visible[text] = 1
	}
	return p
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.calls = append(p.calls, "navigate "+url)
	return p.navigateErr
}

func (p *fakePage) WaitVisibleText(ctx context.Context, text string, first bool) (int, error) {
	p.calls = append(p.calls, "visible "+text)
	n, ok := p.visible[text]
	if !ok {
		return 0, context.DeadlineExceeded
	}
	if first {
		return 1, nil
	}
	return n, nil
}

func (p *fakePage) Screenshot(ctx context.Context, path string, fullPage bool) error {
	p.calls = append(p.calls, fmt.Sprintf("screenshot %s full=%v", path, fullPage))
	if p.shotErr != nil {
		return p.shotErr
	}
	p.shots = append(p.shots, path)
	return nil
}

func compoundPage() *fakePage {
	return newFakePage(LabelTitle, LabelPrincipal, LabelResult, LabelFutureValue)
}

func TestVerifier_CompoundPlan(t *testing.T) {
	page := compoundPage()
	v := New("http://localhost:3000/", CompoundPlan(PlanOptions{OutDir: "verification"}), nil)

	steps, err := v.Run(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, steps, 6)

	assert.Equal(t, []string{
		"navigate http://localhost:3000/compound",
		"visible 复利计算器",
		"visible 起始金额",
		"visible 计算结果",
		"visible 期末总值",
		"screenshot verification/compound_calculator.png full=true",
	}, page.calls)

	for i, step := range steps {
		assert.Equal(t, i, step.Index)
		assert.Equal(t, models.StatusSuccess, step.Status)
		assert.Empty(t, step.ErrorMessage)
	}
}

func TestVerifier_StopsAtFirstFailure(t *testing.T) {
	page := newFakePage(LabelTitle, LabelPrincipal)
	v := New("http://localhost:3000", CompoundPlan(PlanOptions{}), nil)

	var observed []models.StepResult
	v.OnStep = func(s models.StepResult) { observed = append(observed, s) }

	steps, err := v.Run(context.Background(), page)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotVisible)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, 3, stepErr.Index)
	assert.Equal(t, LabelResult, stepErr.Check.Target)

	require.Len(t, steps, 4)
	assert.Equal(t, models.StatusFailed, steps[3].Status)
	assert.Contains(t, steps[3].ErrorMessage, ErrNotVisible.Error())
	assert.Equal(t, steps, observed)
	assert.Empty(t, page.shots)
}

func TestVerifier_StrictMatch(t *testing.T) {
	page := compoundPage()
	page.visible[LabelTitle] = 3
	page.visible[LabelPrincipal] = 2

	v := New("http://localhost:3000", CompoundPlan(PlanOptions{}), nil)
	_, err := v.Run(context.Background(), page)

	// The title accepts the first match; the principal label does not
	assert.ErrorIs(t, err, ErrAmbiguous)
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, 2, stepErr.Index)
}

func TestVerifier_CanceledContextIsNotInvisibility(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := New("http://localhost:3000", []models.Check{models.VisibleText("missing")}, nil)
	_, err := v.Run(ctx, newFakePage())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotVisible)
}

func TestVerifier_NavigationFailure(t *testing.T) {
	page := compoundPage()
	page.navigateErr = errors.New("net::ERR_CONNECTION_REFUSED")

	v := New("http://localhost:3000", CompoundPlan(PlanOptions{}), nil)
	steps, err := v.Run(context.Background(), page)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_CONNECTION_REFUSED")
	assert.Len(t, steps, 1)
	assert.Equal(t, []string{"navigate http://localhost:3000/compound"}, page.calls)
}

func TestVerifier_UnsupportedCheck(t *testing.T) {
	v := New("http://x", []models.Check{{Kind: "hover", Target: "#a"}}, nil)
	_, err := v.Run(context.Background(), newFakePage())
	assert.ErrorContains(t, err, "unsupported check kind")
}

func TestVerifier_URL(t *testing.T) {
	v := New("http://localhost:3000/", nil, nil)

	assert.Equal(t, "http://localhost:3000/compound", v.URL("/compound"))
	assert.Equal(t, "http://localhost:3000/compound", v.URL("compound"))
	assert.Equal(t, "https://example.com/x", v.URL("https://example.com/x"))
}

func TestCompoundPlan_CheckResult(t *testing.T) {
	plan := CompoundPlan(PlanOptions{OutDir: "out", CheckResult: true})
	require.Len(t, plan, 7)

	value := plan[5]
	assert.Equal(t, models.CheckVisibleText, value.Kind)
	assert.Equal(t, "¥16,288.95", value.Target)
	assert.True(t, value.First)

	assert.Equal(t, models.Screenshot(filepath.Join("out", SuccessScreenshot)), plan[6])
}
