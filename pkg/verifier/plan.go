// Package verifier checks that a page renders the text it is expected to and
// records the outcome as a typed result.
package verifier

import (
	"path/filepath"

	"dev/bravebird/page-verifier/pkg/compound"
	"dev/bravebird/page-verifier/pkg/models"
)

const (
	CompoundPath = "/compound"

	LabelTitle       = "复利计算器" // Compound Calculator
	LabelPrincipal   = "起始金额"  // Starting Amount
	LabelResult      = "计算结果"  // Calculation Result
	LabelFutureValue = "期末总值"  // Final Total Value

	SuccessScreenshot = "compound_calculator.png"
	ErrorScreenshot   = "error_v3.png"
)

// PlanOptions tunes the compound calculator plan
type PlanOptions struct {
	OutDir      string // Directory for the success screenshot
	CheckResult bool   // Also expect the future value of the default inputs
}

// CompoundPlan returns the checks for the compound calculator page
func CompoundPlan(opts PlanOptions) []models.Check {
	title := models.VisibleText(LabelTitle)
	// The tool name also appears in navigation
	title.First = true

	plan := []models.Check{
		models.Navigate(CompoundPath),
		title,
		models.VisibleText(LabelPrincipal),
		models.VisibleText(LabelResult),
		models.VisibleText(LabelFutureValue),
	}

	if opts.CheckResult {
		if res, ok := compound.Calculate(compound.DefaultInput()); ok {
			// Repeated in the last row of the yearly breakdown
			value := models.VisibleText(compound.FormatCNY(res.FutureValue))
			value.First = true
			plan = append(plan, value)
		}
	}

	return append(plan, models.Screenshot(filepath.Join(opts.OutDir, SuccessScreenshot)))
}
