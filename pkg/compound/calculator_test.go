package compound

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name          string
		input         Input
		wantFuture    float64
		wantPrincipal float64
		wantYears     int
	}{
		{
			name:          "page defaults",
			input:         DefaultInput(),
			wantFuture:    16288.946267774414,
			wantPrincipal: 10000,
			wantYears:     10,
		},
		{
			name:          "monthly compounding",
			input:         Input{Principal: 10000, Rate: 5, Years: 10, Frequency: Monthly},
			wantFuture:    16470.09498,
			wantPrincipal: 10000,
			wantYears:     10,
		},
		{
			name:          "quarterly compounding",
			input:         Input{Principal: 10000, Rate: 4, Years: 1, Frequency: Quarterly},
			wantFuture:    10406.0401,
			wantPrincipal: 10000,
			wantYears:     1,
		},
		{
			name:          "contributions without interest",
			input:         Input{Contribution: 100, Years: 1, Frequency: Annually},
			wantFuture:    1200,
			wantPrincipal: 1200,
			wantYears:     1,
		},
		{
			name:          "partial year rounds months up",
			input:         Input{Principal: 1000, Years: 1.5, Frequency: Monthly},
			wantFuture:    1000,
			wantPrincipal: 1000,
			wantYears:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Calculate(tt.input)
			require.True(t, ok)

			assert.InDelta(t, tt.wantFuture, got.FutureValue, 0.01)
			assert.InDelta(t, tt.wantPrincipal, got.TotalPrincipal, 0.001)
			assert.InDelta(t, got.FutureValue-got.TotalPrincipal, got.TotalInterest, 0.001)
			assert.Len(t, got.Breakdown, tt.wantYears)
		})
	}
}

func TestCalculate_BreakdownChains(t *testing.T) {
	got, ok := Calculate(Input{Principal: 500, Contribution: 50, Rate: 6, Years: 3, Frequency: Daily})
	require.True(t, ok)
	require.Len(t, got.Breakdown, 3)

	for i, year := range got.Breakdown {
		assert.Equal(t, i+1, year.Year)
		assert.InDelta(t, 600, year.Contributions, 0.001)
		assert.InDelta(t, year.StartBalance+year.Contributions+year.Interest, year.EndBalance, 0.001)
		if i > 0 {
			assert.Equal(t, got.Breakdown[i-1].EndBalance, year.StartBalance)
		}
	}
	assert.Equal(t, got.Breakdown[2].EndBalance, got.FutureValue)
}

func TestCalculate_NonPositiveYears(t *testing.T) {
	_, ok := Calculate(Input{Principal: 100, Rate: 5, Years: 0})
	assert.False(t, ok)

	_, ok = Calculate(Input{Principal: 100, Rate: 5, Years: -2})
	assert.False(t, ok)
}

func TestFormatCNY(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{16288.946267774414, "¥16,288.95"},
		{0, "¥0.00"},
		{999.999, "¥1,000.00"},
		{1234567.891, "¥1,234,567.89"},
		{-5, "-¥5.00"},
		{12.3, "¥12.30"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCNY(tt.in), "FormatCNY(%v)", tt.in)
	}
}

func TestFrequencyPerYear(t *testing.T) {
	assert.Equal(t, 365, Daily.PerYear())
	assert.Equal(t, 12, Monthly.PerYear())
	assert.Equal(t, 4, Quarterly.PerYear())
	assert.Equal(t, 1, Annually.PerYear())
	assert.Equal(t, 1, Frequency("weekly").PerYear())
}
