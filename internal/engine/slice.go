package engine

import (
	"time"

	"github.com/jhopkins78/he-revenue-leaks/internal/dataset"
)

// sliceByTime returns the records whose timestamp falls inside [from, to),
// preserving input order.
func sliceByTime[T any](records []T, ts func(T) time.Time, from, to time.Time) []T {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if contains(ts(rec), from, to) {
			out = append(out, rec)
		}
	}
	return out
}

// windowed holds one stream sliced into its current and baseline portions.
type windowed[T any] struct {
	current  []T
	baseline []T
}

func splitStream[T any](records []T, ts func(T) time.Time, w Window) windowed[T] {
	return windowed[T]{
		current:  sliceByTime(records, ts, w.WindowStart, w.WindowEnd),
		baseline: sliceByTime(records, ts, w.BaselineStart, w.BaselineEnd),
	}
}

func orderTS(o dataset.Order) time.Time          { return o.OrderTS }
func refundTS(r dataset.Refund) time.Time        { return r.RefundTS }
func paymentTS(p dataset.Payment) time.Time      { return p.PaymentTS }
func ticketTS(t dataset.SupportTicket) time.Time { return t.CreatedTS }
