package app

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhopkins78/he-revenue-leaks/internal/dataset"
)

// Seed writes the deterministic demo dataset for one tenant and prints the
// resulting file paths.
func (a *App) Seed(ctx context.Context, opts SeedOptions) error {
	root := opts.OutRoot
	if root == "" {
		root = a.Config.App.DataRoot
	}
	base := filepath.Join(root, opts.TenantID)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return err
	}

	ds := demoDataset()

	files := map[string]string{
		"orders":      filepath.Join(base, "fact_orders.csv"),
		"order_lines": filepath.Join(base, "fact_order_lines.csv"),
		"refunds":     filepath.Join(base, "fact_refunds.csv"),
		"payments":    filepath.Join(base, "fact_payments.csv"),
		"tickets":     filepath.Join(base, "fact_support_tickets.csv"),
		"discounts":   filepath.Join(base, "fact_discounts.csv"),
	}

	orderRows := make([][]string, 0, len(ds.Orders))
	for _, o := range ds.Orders {
		orderRows = append(orderRows, []string{
			o.OrderID, o.CustomerID, o.OrderTS.Format(time.RFC3339),
			o.GrossRevenue.String(), o.DiscountAmount.String(), o.NetRevenue.String(),
			o.ShippingCost.String(), o.COGSTotal.String(),
		})
	}
	if err := writeCSV(files["orders"],
		[]string{"order_id", "customer_id", "order_ts", "gross_revenue", "discount_amount", "net_revenue", "shipping_cost", "cogs_total"},
		orderRows); err != nil {
		return err
	}

	lineRows := make([][]string, 0, len(ds.OrderLines))
	for _, l := range ds.OrderLines {
		lineRows = append(lineRows, []string{l.OrderID, l.LineID, l.SKUID, strconv.Itoa(l.Qty), l.LineNet.String()})
	}
	if err := writeCSV(files["order_lines"],
		[]string{"order_id", "line_id", "sku_id", "qty", "line_net"},
		lineRows); err != nil {
		return err
	}

	refundRows := make([][]string, 0, len(ds.Refunds))
	for _, r := range ds.Refunds {
		refundRows = append(refundRows, []string{
			r.RefundID, r.OrderID, r.RefundTS.Format(time.RFC3339), r.RefundAmount.String(), r.Reason,
		})
	}
	if err := writeCSV(files["refunds"],
		[]string{"refund_id", "order_id", "refund_ts", "refund_amount", "refund_reason"},
		refundRows); err != nil {
		return err
	}

	paymentRows := make([][]string, 0, len(ds.Payments))
	for _, p := range ds.Payments {
		paymentRows = append(paymentRows, []string{
			p.PaymentID, p.OrderID, p.PaymentTS.Format(time.RFC3339),
			p.Amount.String(), string(p.Status), p.DisputeAmount.String(),
		})
	}
	if err := writeCSV(files["payments"],
		[]string{"payment_id", "order_id", "payment_ts", "amount", "status", "dispute_amount"},
		paymentRows); err != nil {
		return err
	}

	ticketRows := make([][]string, 0, len(ds.Tickets))
	for _, t := range ds.Tickets {
		ticketRows = append(ticketRows, []string{t.TicketID, t.CustomerID, t.CreatedTS.Format(time.RFC3339), t.Topic})
	}
	if err := writeCSV(files["tickets"],
		[]string{"ticket_id", "customer_id", "created_ts", "topic"},
		ticketRows); err != nil {
		return err
	}

	couponRows := make([][]string, 0, len(ds.CouponUsages))
	for _, c := range ds.CouponUsages {
		couponRows = append(couponRows, []string{c.EventID, c.OrderID, c.CouponCode, c.CustomerID, c.DiscountValue.String()})
	}
	if err := writeCSV(files["discounts"],
		[]string{"discount_event_id", "order_id", "coupon_code", "customer_id", "discount_value"},
		couponRows); err != nil {
		return err
	}

	a.Logger.Info().Str("tenant_id", opts.TenantID).Str("dir", base).Msg("demo dataset written")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(files)
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return writer.Error()
}

// demoDataset reproduces the fixed demo tenant: three current-window orders
// with heavy coupon use and two refunds, against a quieter baseline quarter.
func demoDataset() dataset.Dataset {
	ts := func(value string) time.Time {
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			panic(err)
		}
		return t
	}
	usd := decimal.NewFromInt

	return dataset.Dataset{
		Orders: []dataset.Order{
			{OrderID: "o1", CustomerID: "c1", OrderTS: ts("2026-01-05T10:00:00Z"), GrossRevenue: usd(500), DiscountAmount: usd(90), NetRevenue: usd(410), ShippingCost: usd(40), COGSTotal: usd(220)},
			{OrderID: "o2", CustomerID: "c2", OrderTS: ts("2026-01-12T11:00:00Z"), GrossRevenue: usd(600), DiscountAmount: usd(120), NetRevenue: usd(480), ShippingCost: usd(55), COGSTotal: usd(280)},
			{OrderID: "o3", CustomerID: "c3", OrderTS: ts("2026-01-17T13:00:00Z"), GrossRevenue: usd(450), DiscountAmount: usd(80), NetRevenue: usd(370), ShippingCost: usd(42), COGSTotal: usd(210)},
			{OrderID: "o4", CustomerID: "c1", OrderTS: ts("2025-11-20T10:00:00Z"), GrossRevenue: usd(520), DiscountAmount: usd(40), NetRevenue: usd(480), ShippingCost: usd(28), COGSTotal: usd(230)},
			{OrderID: "o5", CustomerID: "c4", OrderTS: ts("2025-12-02T10:00:00Z"), GrossRevenue: usd(510), DiscountAmount: usd(35), NetRevenue: usd(475), ShippingCost: usd(26), COGSTotal: usd(220)},
			{OrderID: "o6", CustomerID: "c5", OrderTS: ts("2025-12-22T10:00:00Z"), GrossRevenue: usd(500), DiscountAmount: usd(30), NetRevenue: usd(470), ShippingCost: usd(25), COGSTotal: usd(215)},
		},
		OrderLines: []dataset.OrderLine{
			{OrderID: "o1", LineID: "l1", SKUID: "sku_a", Qty: 1, LineNet: usd(410)},
			{OrderID: "o2", LineID: "l2", SKUID: "sku_a", Qty: 1, LineNet: usd(480)},
			{OrderID: "o3", LineID: "l3", SKUID: "sku_b", Qty: 1, LineNet: usd(370)},
		},
		Refunds: []dataset.Refund{
			{RefundID: "r1", OrderID: "o1", RefundTS: ts("2026-01-20T10:00:00Z"), RefundAmount: usd(140), Reason: "quality"},
			{RefundID: "r2", OrderID: "o2", RefundTS: ts("2026-01-21T10:00:00Z"), RefundAmount: usd(120), Reason: "late_delivery"},
			{RefundID: "r3", OrderID: "o4", RefundTS: ts("2025-11-25T10:00:00Z"), RefundAmount: usd(40), Reason: "other"},
		},
		Payments: []dataset.Payment{
			{PaymentID: "p1", OrderID: "o1", PaymentTS: ts("2026-01-05T10:00:00Z"), Amount: usd(410), Status: dataset.PaymentSucceeded, DisputeAmount: usd(0)},
			{PaymentID: "p2", OrderID: "o2", PaymentTS: ts("2026-01-12T10:00:00Z"), Amount: usd(480), Status: dataset.PaymentFailed, DisputeAmount: usd(0)},
			{PaymentID: "p3", OrderID: "o3", PaymentTS: ts("2026-01-17T10:00:00Z"), Amount: usd(370), Status: dataset.PaymentDisputed, DisputeAmount: usd(70)},
			{PaymentID: "p4", OrderID: "o4", PaymentTS: ts("2025-11-20T10:00:00Z"), Amount: usd(480), Status: dataset.PaymentSucceeded, DisputeAmount: usd(0)},
			{PaymentID: "p5", OrderID: "o5", PaymentTS: ts("2025-12-02T10:00:00Z"), Amount: usd(475), Status: dataset.PaymentSucceeded, DisputeAmount: usd(0)},
		},
		Tickets: []dataset.SupportTicket{
			{TicketID: "t1", CustomerID: "c1", CreatedTS: ts("2026-01-18T10:00:00Z"), Topic: "quality"},
			{TicketID: "t2", CustomerID: "c2", CreatedTS: ts("2026-01-19T10:00:00Z"), Topic: "delivery"},
			{TicketID: "t3", CustomerID: "c4", CreatedTS: ts("2025-11-21T10:00:00Z"), Topic: "billing"},
		},
		CouponUsages: []dataset.CouponUsage{
			{EventID: "d1", OrderID: "o1", CouponCode: "WELCOME", CustomerID: "c1", DiscountValue: usd(90)},
			{EventID: "d2", OrderID: "o2", CouponCode: "WELCOME", CustomerID: "c2", DiscountValue: usd(120)},
			{EventID: "d3", OrderID: "o3", CouponCode: "WELCOME", CustomerID: "c3", DiscountValue: usd(80)},
			{EventID: "d4", OrderID: "o4", CouponCode: "WELCOME", CustomerID: "c1", DiscountValue: usd(40)},
		},
	}
}
