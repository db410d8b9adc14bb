// Package scoring grades engine results into ranked dashboard reports:
// per-signal severity and confidence, summary cards, and run-over-run deltas.
package scoring

import (
	"math"

	"github.com/shopspring/decimal"
)

// TemplateName identifies the evaluation template in API payloads and
// persisted runs.
const TemplateName = "revenue_leaks_v1"

// Severity grades.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

var (
	severityHighRatio     = decimal.RequireFromString("0.08")
	severityHighLossUSD   = decimal.NewFromInt(10000)
	severityMediumRatio   = decimal.RequireFromString("0.03")
	severityMediumLossUSD = decimal.NewFromInt(2500)
)

// Severity grades a loss against the window's net revenue. The revenue
// denominator is floored at one dollar so tiny windows still grade.
func Severity(loss, netRevenue decimal.Decimal) string {
	ratio := loss.Div(decimal.Max(netRevenue, decimal.NewFromInt(1)))
	switch {
	case ratio.GreaterThanOrEqual(severityHighRatio) || loss.GreaterThanOrEqual(severityHighLossUSD):
		return SeverityHigh
	case ratio.GreaterThanOrEqual(severityMediumRatio) || loss.GreaterThanOrEqual(severityMediumLossUSD):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Confidence blends data completeness with sample volume into [0.1, 1.0],
// rounded to two decimals. A thousand samples saturate the volume term.
func Confidence(sampleSize int, completeness float64) float64 {
	sampleScore := math.Min(1.0, float64(sampleSize)/1000.0+0.2)
	c := 0.6*completeness + 0.4*sampleScore
	c = math.Max(0.1, math.Min(1.0, c))
	return math.Round(c*100) / 100
}
