package engine

import (
	"testing"
	"time"

	"github.com/jhopkins78/he-revenue-leaks/internal/dataset"
	"github.com/shopspring/decimal"
)

func TestFrameWindowsAnchorsOnNewestEvent(t *testing.T) {
	orderTime := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	refundTime := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	paymentTime := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	ds := dataset.Dataset{
		Orders:   []dataset.Order{{OrderID: "o1", OrderTS: orderTime}},
		Refunds:  []dataset.Refund{{RefundID: "r1", OrderID: "o1", RefundTS: refundTime}},
		Payments: []dataset.Payment{{PaymentID: "p1", OrderID: "o1", PaymentTS: paymentTime}},
	}

	win := frameWindows(ds, 28, 84, time.Now)

	if !win.Anchor.Equal(refundTime) {
		t.Fatalf("anchor = %s, want newest event %s", win.Anchor, refundTime)
	}
	if !win.WindowEnd.Equal(refundTime) {
		t.Fatalf("window end = %s, want anchor", win.WindowEnd)
	}
	if !win.WindowStart.Equal(refundTime.Add(-28 * 24 * time.Hour)) {
		t.Fatalf("window start = %s, want anchor-28d", win.WindowStart)
	}
	if !win.BaselineEnd.Equal(win.WindowStart) {
		t.Fatalf("baseline end = %s, want window start", win.BaselineEnd)
	}
	if !win.BaselineStart.Equal(refundTime.Add(-112 * 24 * time.Hour)) {
		t.Fatalf("baseline start = %s, want anchor-112d", win.BaselineStart)
	}
}

func TestFrameWindowsEmptyDatasetUsesClock(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	win := frameWindows(dataset.Dataset{}, 28, 84, func() time.Time { return now })

	if !win.Anchor.Equal(now) {
		t.Fatalf("anchor = %s, want injected clock %s", win.Anchor, now)
	}
}

func TestSplitStreamHalfOpenBoundaries(t *testing.T) {
	anchor := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	win := Window{
		Anchor:        anchor,
		WindowStart:   anchor.Add(-28 * 24 * time.Hour),
		WindowEnd:     anchor,
		BaselineStart: anchor.Add(-112 * 24 * time.Hour),
		BaselineEnd:   anchor.Add(-28 * 24 * time.Hour),
		WindowDays:    28,
		BaselineDays:  84,
	}

	orders := []dataset.Order{
		{OrderID: "at_anchor", OrderTS: anchor},
		{OrderID: "at_window_start", OrderTS: win.WindowStart},
		{OrderID: "before_window_start", OrderTS: win.WindowStart.Add(-time.Second)},
		{OrderID: "at_baseline_start", OrderTS: win.BaselineStart},
		{OrderID: "before_baseline_start", OrderTS: win.BaselineStart.Add(-time.Second)},
	}

	split := splitStream(orders, orderTS, win)

	if len(split.current) != 1 || split.current[0].OrderID != "at_window_start" {
		t.Fatalf("current window = %+v, want only the order at window start", split.current)
	}
	if len(split.baseline) != 2 {
		t.Fatalf("baseline window has %d orders, want 2", len(split.baseline))
	}
	for _, o := range split.baseline {
		if o.OrderID != "at_baseline_start" && o.OrderID != "before_window_start" {
			t.Fatalf("unexpected baseline order %s", o.OrderID)
		}
	}
}

func TestContains(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	if !contains(from, from, to) {
		t.Fatal("interval start should be inside")
	}
	if contains(to, from, to) {
		t.Fatal("interval end should be outside")
	}
	if contains(from.Add(-time.Nanosecond), from, to) {
		t.Fatal("instant before start should be outside")
	}
}

func TestWindowFraction(t *testing.T) {
	frac := windowFraction(Window{WindowDays: 28, BaselineDays: 84})
	if !frac.Mul(decimal.NewFromInt(3)).Round(6).Equal(decimal.NewFromInt(1)) {
		t.Fatalf("window fraction = %s, want one third", frac)
	}

	if !windowFraction(Window{WindowDays: 28}).IsZero() {
		t.Fatal("zero baseline days should yield a zero fraction")
	}
}
