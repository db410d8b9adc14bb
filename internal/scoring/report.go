package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhopkins78/he-revenue-leaks/internal/engine"
)

// TopLeakCount caps the topLeaks section of a report.
const TopLeakCount = 10

// ScoredSignal is one graded leak signal as it appears on the wire.
type ScoredSignal struct {
	SignalID   string             `json:"signal_id"`
	LossUSD    float64            `json:"estimated_loss_usd"`
	Severity   string             `json:"severity"`
	Confidence float64            `json:"confidence"`
	ReasonCode string             `json:"reason_code"`
	Metrics    map[string]float64 `json:"metrics"`
}

// SummaryCards condenses one run for the dashboard header.
type SummaryCards struct {
	TotalEstimatedLeakUSD float64 `json:"totalEstimatedLeakUsd"`
	SignalsDetected       int     `json:"signalsDetected"`
	HighSeverityCount     int     `json:"highSeverityCount"`
	NetRevenueWindow      float64 `json:"netRevenueWindow"`
}

// WindowBounds carries the evaluation window on the wire.
type WindowBounds struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	BaselineStart time.Time `json:"baseline_start"`
	BaselineEnd   time.Time `json:"baseline_end"`
}

// Ratios is the wire form of a normalised ratio set.
type Ratios struct {
	RefundRate    float64 `json:"refund_rate"`
	DiscountRate  float64 `json:"discount_rate"`
	ShippingRatio float64 `json:"shipping_ratio"`
	FailedPayRate float64 `json:"failed_pay_rate"`
	Margin        float64 `json:"margin"`
}

// Report is the full dashboard payload for one run.
type Report struct {
	Window         WindowBounds   `json:"window"`
	SummaryCards   SummaryCards   `json:"summaryCards"`
	TopLeaks       []ScoredSignal `json:"topLeaks"`
	AllSignals     []ScoredSignal `json:"allSignals"`
	CurrentRatios  Ratios         `json:"current_ratios"`
	BaselineRatios Ratios         `json:"baseline_ratios"`
}

// DeltaSet compares two consecutive runs' summary cards. All fields are
// null when there is no previous run.
type DeltaSet struct {
	TotalEstimatedLeakUSDDelta *float64 `json:"totalEstimatedLeakUsdDelta"`
	HighSeverityCountDelta     *int     `json:"highSeverityCountDelta"`
	SignalsDetectedDelta       *int     `json:"signalsDetectedDelta"`
}

// BuildReport grades and ranks an engine result. Signals sort by estimated
// loss descending; ties keep the engine's fixed evaluation order.
func BuildReport(res engine.Result) Report {
	ranked := make([]ScoredSignal, 0, len(res.Leaks))
	for _, l := range res.Leaks {
		ranked = append(ranked, ScoredSignal{
			SignalID:   l.SignalID,
			LossUSD:    l.LossUSD.InexactFloat64(),
			Severity:   Severity(l.LossUSD, res.NetRevenue),
			Confidence: Confidence(l.SampleSize, 1.0),
			ReasonCode: l.ReasonCode,
			Metrics:    floatMetrics(l.Metrics),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].LossUSD > ranked[j].LossUSD
	})

	high := 0
	for _, s := range ranked {
		if s.Severity == SeverityHigh {
			high++
		}
	}

	top := ranked
	if len(top) > TopLeakCount {
		top = top[:TopLeakCount]
	}

	return Report{
		Window: WindowBounds{
			Start:         res.Window.WindowStart,
			End:           res.Window.WindowEnd,
			BaselineStart: res.Window.BaselineStart,
			BaselineEnd:   res.Window.BaselineEnd,
		},
		SummaryCards: SummaryCards{
			TotalEstimatedLeakUSD: res.TotalLoss().InexactFloat64(),
			SignalsDetected:       len(ranked),
			HighSeverityCount:     high,
			NetRevenueWindow:      res.NetRevenue.Round(2).InexactFloat64(),
		},
		TopLeaks:       top,
		AllSignals:     ranked,
		CurrentRatios:  floatRatios(res.CurrentRatios),
		BaselineRatios: floatRatios(res.BaselineRatios),
	}
}

// Deltas diffs the current cards against the previous run's.
func Deltas(cur SummaryCards, prev *SummaryCards) DeltaSet {
	if prev == nil {
		return DeltaSet{}
	}
	total := round2(cur.TotalEstimatedLeakUSD - prev.TotalEstimatedLeakUSD)
	high := cur.HighSeverityCount - prev.HighSeverityCount
	signals := cur.SignalsDetected - prev.SignalsDetected
	return DeltaSet{
		TotalEstimatedLeakUSDDelta: &total,
		HighSeverityCountDelta:     &high,
		SignalsDetectedDelta:       &signals,
	}
}

func floatMetrics(in map[string]decimal.Decimal) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v.InexactFloat64()
	}
	return out
}

func floatRatios(r engine.RatioSet) Ratios {
	return Ratios{
		RefundRate:    r.RefundRate.InexactFloat64(),
		DiscountRate:  r.DiscountRate.InexactFloat64(),
		ShippingRatio: r.ShippingRatio.InexactFloat64(),
		FailedPayRate: r.FailedPayRate.InexactFloat64(),
		Margin:        r.Margin.InexactFloat64(),
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
