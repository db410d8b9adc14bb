// Package dataset models the normalized merchant fact streams consumed by the
// leak engine and loads them from CSV, JSON, or JSONL fact tables.
package dataset

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus enumerates the states a payment attempt can be in.
type PaymentStatus string

const (
	PaymentAttempted PaymentStatus = "attempted"
	PaymentFailed    PaymentStatus = "failed"
	PaymentDisputed  PaymentStatus = "disputed"
	PaymentSucceeded PaymentStatus = "succeeded"
)

// Order is one completed checkout.
type Order struct {
	OrderID        string          `json:"order_id"`
	CustomerID     string          `json:"customer_id"`
	OrderTS        time.Time       `json:"order_ts"`
	GrossRevenue   decimal.Decimal `json:"gross_revenue"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	NetRevenue     decimal.Decimal `json:"net_revenue"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	COGSTotal      decimal.Decimal `json:"cogs_total"`
}

// OrderLine is one SKU position within an order.
type OrderLine struct {
	OrderID string          `json:"order_id"`
	LineID  string          `json:"line_id"`
	SKUID   string          `json:"sku_id"`
	Qty     int             `json:"qty"`
	LineNet decimal.Decimal `json:"line_net"`
}

// Refund is money returned against an order.
type Refund struct {
	RefundID     string          `json:"refund_id"`
	OrderID      string          `json:"order_id"`
	RefundTS     time.Time       `json:"refund_ts"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Reason       string          `json:"refund_reason"`
}

// Payment is one payment attempt against an order.
type Payment struct {
	PaymentID     string          `json:"payment_id"`
	OrderID       string          `json:"order_id"`
	PaymentTS     time.Time       `json:"payment_ts"`
	Amount        decimal.Decimal `json:"amount"`
	Status        PaymentStatus   `json:"status"`
	DisputeAmount decimal.Decimal `json:"dispute_amount"`
}

// SupportTicket is one customer support contact.
type SupportTicket struct {
	TicketID   string    `json:"ticket_id"`
	CustomerID string    `json:"customer_id"`
	CreatedTS  time.Time `json:"created_ts"`
	Topic      string    `json:"topic"`
}

// CouponUsage is one coupon redemption event.
type CouponUsage struct {
	EventID       string          `json:"discount_event_id"`
	OrderID       string          `json:"order_id"`
	CouponCode    string          `json:"coupon_code"`
	CustomerID    string          `json:"customer_id"`
	DiscountValue decimal.Decimal `json:"discount_value"`
}

// Dataset bundles the six fact streams for one evaluation.
type Dataset struct {
	Orders       []Order
	OrderLines   []OrderLine
	Refunds      []Refund
	Payments     []Payment
	Tickets      []SupportTicket
	CouponUsages []CouponUsage
}
