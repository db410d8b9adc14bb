package engine

import (
	"github.com/shopspring/decimal"

	"github.com/jhopkins78/he-revenue-leaks/internal/dataset"
)

// MetricSet holds the scalar aggregates of one window.
type MetricSet struct {
	OrderCount          int             `json:"order_count"`
	GrossRevenue        decimal.Decimal `json:"gross_revenue"`
	DiscountTotal       decimal.Decimal `json:"discount_total"`
	NetRevenue          decimal.Decimal `json:"net_revenue"`
	ShippingCostTotal   decimal.Decimal `json:"shipping_cost_total"`
	COGSTotal           decimal.Decimal `json:"cogs_total"`
	RefundCount         int             `json:"refund_count"`
	RefundAmountTotal   decimal.Decimal `json:"refund_amount_total"`
	PaymentAttempts     int             `json:"payment_attempts"`
	PaymentFailedCount  int             `json:"payment_failed_count"`
	PaymentFailedAmount decimal.Decimal `json:"payment_failed_amount"`
	DisputeCount        int             `json:"dispute_count"`
	DisputeAmountTotal  decimal.Decimal `json:"dispute_amount_total"`
	TicketCount         int             `json:"ticket_count"`
}

// aggregate folds one window's worth of sliced streams into a MetricSet.
// Every payment row counts as an attempt; failed and disputed rows
// additionally feed their dedicated totals.
func aggregate(orders []dataset.Order, refunds []dataset.Refund, payments []dataset.Payment, tickets []dataset.SupportTicket) MetricSet {
	m := MetricSet{
		OrderCount:  len(orders),
		RefundCount: len(refunds),
		TicketCount: len(tickets),
	}

	for _, o := range orders {
		m.GrossRevenue = m.GrossRevenue.Add(o.GrossRevenue)
		m.DiscountTotal = m.DiscountTotal.Add(o.DiscountAmount)
		m.NetRevenue = m.NetRevenue.Add(o.NetRevenue)
		m.ShippingCostTotal = m.ShippingCostTotal.Add(o.ShippingCost)
		m.COGSTotal = m.COGSTotal.Add(o.COGSTotal)
	}

	for _, r := range refunds {
		m.RefundAmountTotal = m.RefundAmountTotal.Add(r.RefundAmount)
	}

	for _, p := range payments {
		m.PaymentAttempts++
		switch p.Status {
		case dataset.PaymentFailed:
			m.PaymentFailedCount++
			m.PaymentFailedAmount = m.PaymentFailedAmount.Add(p.Amount)
		case dataset.PaymentDisputed:
			m.DisputeCount++
			m.DisputeAmountTotal = m.DisputeAmountTotal.Add(p.DisputeAmount)
		}
	}

	return m
}
