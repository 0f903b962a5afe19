// Package compound models the compound interest calculator served at
// /compound so the verifier can predict what the page should display.
package compound

import (
	"fmt"
	"math"
	"strings"
)

// Frequency is how often interest compounds per year
type Frequency string

const (
	Daily     Frequency = "daily"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annually  Frequency = "annually"
)

// PerYear returns the number of compounding periods in a year
func (f Frequency) PerYear() int {
	switch f {
	case Daily:
		return 365
	case Monthly:
		return 12
	case Quarterly:
		return 4
	default:
		return 1
	}
}

// Input holds the calculator form values
type Input struct {
	Principal    float64
	Contribution float64 // Added at the end of every month
	Rate         float64 // Annual rate in percent
	Years        float64
	Frequency    Frequency
}

// DefaultInput returns the values the page renders before any user input
func DefaultInput() Input {
	return Input{
		Principal:    10000,
		Contribution: 0,
		Rate:         5,
		Years:        10,
		Frequency:    Annually,
	}
}

// YearBreakdown is the end-of-year snapshot shown in the breakdown table
type YearBreakdown struct {
	Year           int
	StartBalance   float64
	Contributions  float64
	Interest       float64
	EndBalance     float64
	TotalPrincipal float64
}

// Result is the calculator output
type Result struct {
	FutureValue    float64
	TotalPrincipal float64
	TotalInterest  float64
	Breakdown      []YearBreakdown
}

// Calculate simulates the balance month by month. Frequencies at or above
// monthly apply the effective monthly rate to the balance before that month's
// contribution; quarterly and annual compounding apply r/n to the full balance
// at the end of each period. ok is false when Years is not positive.
func Calculate(in Input) (Result, bool) {
	if in.Years <= 0 {
		return Result{}, false
	}

	n := in.Frequency.PerYear()
	r := in.Rate / 100
	totalMonths := int(math.Ceil(in.Years * 12))

	balance := in.Principal
	contributed := in.Principal
	yearStart := in.Principal
	var yearContrib, yearInterest float64
	var breakdown []YearBreakdown

	for month := 1; month <= totalMonths; month++ {
		balance += in.Contribution
		yearContrib += in.Contribution
		contributed += in.Contribution

		if n >= 12 {
			effective := math.Pow(1+r/float64(n), float64(n)/12) - 1
			interest := (balance - in.Contribution) * effective
			balance += interest
			yearInterest += interest
		} else if month%(12/n) == 0 {
			interest := balance * (r / float64(n))
			balance += interest
			yearInterest += interest
		}

		if month%12 == 0 {
			breakdown = append(breakdown, YearBreakdown{
				Year:           month / 12,
				StartBalance:   yearStart,
				Contributions:  yearContrib,
				Interest:       yearInterest,
				EndBalance:     balance,
				TotalPrincipal: contributed,
			})
			yearStart = balance
			yearContrib = 0
			yearInterest = 0
		}
	}

	return Result{
		FutureValue:    balance,
		TotalPrincipal: contributed,
		TotalInterest:  balance - contributed,
		Breakdown:      breakdown,
	}, true
}

// FormatCNY renders v the way zh-CN currency formatting does, e.g. ¥16,288.95
func FormatCNY(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + "¥" + b.String() + "." + frac
}
