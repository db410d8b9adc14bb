// Package engine implements the deterministic revenue-leak evaluation:
// two comparison windows framed off the data itself, per-window aggregates
// and ratios, and ten threshold-gated leak signals.
package engine

import (
	"time"

	"github.com/jhopkins78/he-revenue-leaks/internal/dataset"
)

// Window fixes the current and baseline intervals for one evaluation.
// Both intervals are half-open: [start, end).
type Window struct {
	Anchor        time.Time `json:"-"`
	WindowStart   time.Time `json:"start"`
	WindowEnd     time.Time `json:"end"`
	BaselineStart time.Time `json:"baseline_start"`
	BaselineEnd   time.Time `json:"baseline_end"`
	WindowDays    int       `json:"-"`
	BaselineDays  int       `json:"-"`
}

// frameWindows derives both intervals from the newest event timestamp across
// orders, refunds, and payments. Datasets without any timestamped rows anchor
// on the injected clock.
func frameWindows(ds dataset.Dataset, windowDays, baselineDays int, now func() time.Time) Window {
	var anchor time.Time
	for _, o := range ds.Orders {
		if o.OrderTS.After(anchor) {
			anchor = o.OrderTS
		}
	}
	for _, r := range ds.Refunds {
		if r.RefundTS.After(anchor) {
			anchor = r.RefundTS
		}
	}
	for _, p := range ds.Payments {
		if p.PaymentTS.After(anchor) {
			anchor = p.PaymentTS
		}
	}
	if anchor.IsZero() {
		anchor = now()
	}
	anchor = anchor.UTC()

	windowSpan := time.Duration(windowDays) * 24 * time.Hour
	baselineSpan := time.Duration(baselineDays) * 24 * time.Hour

	start := anchor.Add(-windowSpan)
	return Window{
		Anchor:        anchor,
		WindowStart:   start,
		WindowEnd:     anchor,
		BaselineStart: anchor.Add(-(windowSpan + baselineSpan)),
		BaselineEnd:   start,
		WindowDays:    windowDays,
		BaselineDays:  baselineDays,
	}
}

// contains reports whether ts falls inside [from, to).
func contains(ts, from, to time.Time) bool {
	return !ts.Before(from) && ts.Before(to)
}
