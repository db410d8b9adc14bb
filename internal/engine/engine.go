package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhopkins78/he-revenue-leaks/internal/dataset"
)

// Default window geometry, in days.
const (
	DefaultWindowDays   = 28
	DefaultBaselineDays = 84
)

// Params configure one evaluation. Zero values fall back to the defaults;
// Now is only consulted when the dataset has no timestamped rows at all.
type Params struct {
	WindowDays   int
	BaselineDays int
	Now          func() time.Time
}

func (p Params) withDefaults() Params {
	if p.WindowDays <= 0 {
		p.WindowDays = DefaultWindowDays
	}
	if p.BaselineDays <= 0 {
		p.BaselineDays = DefaultBaselineDays
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return p
}

// Result is the complete outcome of one evaluation: all ten signals in
// fixed order plus the window geometry and the normalised ratio pair that
// produced them.
type Result struct {
	Window         Window          `json:"window"`
	Leaks          []Leak          `json:"signals"`
	CurrentRatios  RatioSet        `json:"current_ratios"`
	BaselineRatios RatioSet        `json:"baseline_ratios"`
	NetRevenue     decimal.Decimal `json:"net_revenue_window"`
	GrossRevenue   decimal.Decimal `json:"gross_revenue_window"`
}

// TotalLoss sums the per-signal estimates, rounded to cents.
func (r Result) TotalLoss() decimal.Decimal {
	var total decimal.Decimal
	for _, l := range r.Leaks {
		total = total.Add(l.LossUSD)
	}
	return total.Round(2)
}

// Signal returns the leak with the given identifier.
func (r Result) Signal(id string) (Leak, bool) {
	for _, l := range r.Leaks {
		if l.SignalID == id {
			return l, true
		}
	}
	return Leak{}, false
}

// Evaluate runs the full pipeline over one dataset: frame the windows off
// the newest event, slice every stream, aggregate, normalise, and score all
// ten detectors. The computation is pure; identical input yields an
// identical Result.
func Evaluate(ds dataset.Dataset, p Params) Result {
	p = p.withDefaults()

	win := frameWindows(ds, p.WindowDays, p.BaselineDays, p.Now)

	orders := splitStream(ds.Orders, orderTS, win)
	refunds := splitStream(ds.Refunds, refundTS, win)
	payments := splitStream(ds.Payments, paymentTS, win)
	tickets := splitStream(ds.Tickets, ticketTS, win)

	cur := aggregate(orders.current, refunds.current, payments.current, tickets.current)
	base := aggregate(orders.baseline, refunds.baseline, payments.baseline, tickets.baseline)
	curRatios := ratios(cur)
	baseRatios := ratios(base)

	windowOrders := make(map[string]struct{}, len(orders.current))
	for _, o := range orders.current {
		windowOrders[o.OrderID] = struct{}{}
	}
	scopedCoupons := couponUsagesInWindow(ds.CouponUsages, windowOrders)

	leaks := evaluateSignals(signalInputs{
		win:          win,
		cur:          cur,
		base:         base,
		curRatios:    curRatios,
		baseRatios:   baseRatios,
		skuRefundTop: skuRefundConcentration(ds.OrderLines, refunds.current),
		couponLoss:   couponAbuse(scopedCoupons),
		lineCount:    len(ds.OrderLines),
		couponCount:  len(scopedCoupons),
		repeatersW:   repeatCustomers(orders.current),
		repeatersB:   repeatCustomers(orders.baseline),
	})

	return Result{
		Window:         win,
		Leaks:          leaks,
		CurrentRatios:  curRatios,
		BaselineRatios: baseRatios,
		NetRevenue:     cur.NetRevenue,
		GrossRevenue:   cur.GrossRevenue,
	}
}
