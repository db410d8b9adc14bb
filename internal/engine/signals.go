package engine

import "github.com/shopspring/decimal"

// Signal identifiers, in evaluation order.
const (
	SignalRefundSpike            = "refund_spike"
	SignalSKURefundConcentration = "sku_refund_concentration"
	SignalDiscountOveruse        = "discount_overuse"
	SignalCouponAbuse            = "coupon_abuse"
	SignalShippingCostCreep      = "shipping_cost_creep"
	SignalFailedPaymentRecovery  = "failed_payment_recovery"
	SignalDisputeChargeback      = "dispute_chargeback"
	SignalMarginCompression      = "margin_compression"
	SignalSupportLinkedRefunds   = "support_linked_refunds"
	SignalRepeatCustomerChurn    = "repeat_customer_churn"
)

// Trigger thresholds. Comparisons against baselines are strict.
const (
	topSKUCount            = 5
	couponAbuseUsesPerUser = 3
)

var (
	refundSpikeRateMult    = decimal.RequireFromString("1.2")
	refundSpikeAmountFloor = decimal.NewFromInt(500)
	discountOveruseDelta   = decimal.RequireFromString("0.03")
	discountRateFloor      = decimal.RequireFromString("0.10")
	shippingCreepMult      = decimal.RequireFromString("1.15")
	failedPayDelta         = decimal.RequireFromString("0.02")
	disputeCountMult       = decimal.RequireFromString("1.2")
	disputeAdminFeeUSD     = decimal.NewFromInt(15)
	marginDropDelta        = decimal.RequireFromString("0.03")
	supportTicketMult      = decimal.RequireFromString("1.2")
	supportRefundMult      = decimal.RequireFromString("1.1")
)

// Leak is one evaluated signal: a non-negative dollar estimate plus the
// diagnostics that explain it.
type Leak struct {
	SignalID   string                     `json:"signal_id"`
	LossUSD    decimal.Decimal            `json:"estimated_loss_usd"`
	ReasonCode string                     `json:"reason_code"`
	SampleSize int                        `json:"sample_size"`
	Metrics    map[string]decimal.Decimal `json:"metrics"`
}

type signalInputs struct {
	win          Window
	cur          MetricSet
	base         MetricSet
	curRatios    RatioSet
	baseRatios   RatioSet
	skuRefundTop decimal.Decimal
	couponLoss   decimal.Decimal
	lineCount    int
	couponCount  int
	repeatersW   int
	repeatersB   int
}

// evaluateSignals runs all ten detectors. Every signal is always emitted;
// an untriggered detector reports a zero loss. Losses are clamped to zero
// and rounded to cents here.
func evaluateSignals(in signalInputs) []Leak {
	leaks := make([]Leak, 0, 10)

	// refund spike
	var loss decimal.Decimal
	if in.curRatios.RefundRate.GreaterThan(in.baseRatios.RefundRate.Mul(refundSpikeRateMult)) &&
		in.cur.RefundAmountTotal.GreaterThanOrEqual(refundSpikeAmountFloor) {
		loss = in.cur.RefundAmountTotal.Sub(in.baseRatios.RefundRate.Mul(in.cur.NetRevenue))
	}
	leaks = append(leaks, newLeak(SignalRefundSpike, loss, "refund_rate_20pct_above_baseline", in.cur.RefundCount, map[string]decimal.Decimal{
		"refund_rate_w": in.curRatios.RefundRate,
		"refund_rate_b": in.baseRatios.RefundRate,
	}))

	// sku refund concentration, reported unconditionally
	leaks = append(leaks, newLeak(SignalSKURefundConcentration, in.skuRefundTop, "top_sku_refund_concentration", in.lineCount, nil))

	// discount overuse
	loss = decimal.Zero
	if in.curRatios.DiscountRate.GreaterThan(in.baseRatios.DiscountRate.Add(discountOveruseDelta)) {
		target := decimal.Max(in.baseRatios.DiscountRate, discountRateFloor)
		loss = in.curRatios.DiscountRate.Sub(target).Mul(in.cur.GrossRevenue)
	}
	leaks = append(leaks, newLeak(SignalDiscountOveruse, loss, "discount_rate_above_baseline_plus_3pp", in.cur.OrderCount, map[string]decimal.Decimal{
		"discount_rate_w": in.curRatios.DiscountRate,
		"discount_rate_b": in.baseRatios.DiscountRate,
	}))

	// coupon abuse, reported unconditionally
	leaks = append(leaks, newLeak(SignalCouponAbuse, in.couponLoss, "high_redemption_per_user", in.couponCount, nil))

	// shipping cost creep
	loss = decimal.Zero
	if in.curRatios.ShippingRatio.GreaterThan(in.baseRatios.ShippingRatio.Mul(shippingCreepMult)) {
		loss = in.cur.ShippingCostTotal.Sub(in.baseRatios.ShippingRatio.Mul(in.cur.NetRevenue))
	}
	leaks = append(leaks, newLeak(SignalShippingCostCreep, loss, "shipping_ratio_15pct_above_baseline", in.cur.OrderCount, map[string]decimal.Decimal{
		"shipping_ratio_w": in.curRatios.ShippingRatio,
		"shipping_ratio_b": in.baseRatios.ShippingRatio,
	}))

	// failed payment recovery
	loss = decimal.Zero
	if in.curRatios.FailedPayRate.GreaterThan(in.baseRatios.FailedPayRate.Add(failedPayDelta)) {
		loss = in.cur.PaymentFailedAmount
	}
	leaks = append(leaks, newLeak(SignalFailedPaymentRecovery, loss, "failed_payment_rate_above_baseline_plus_2pp", in.cur.PaymentAttempts, map[string]decimal.Decimal{
		"fail_rate_w": in.curRatios.FailedPayRate,
		"fail_rate_b": in.baseRatios.FailedPayRate,
	}))

	// dispute chargeback, flat admin fee per dispute on top of disputed amounts
	loss = decimal.Zero
	dispW := decimal.NewFromInt(int64(in.cur.DisputeCount))
	dispB := decimal.NewFromInt(int64(in.base.DisputeCount))
	if dispW.GreaterThan(dispB.Mul(disputeCountMult)) {
		loss = in.cur.DisputeAmountTotal.Add(dispW.Mul(disputeAdminFeeUSD))
	}
	leaks = append(leaks, newLeak(SignalDisputeChargeback, loss, "dispute_count_20pct_above_baseline", in.cur.PaymentAttempts, nil))

	// margin compression
	loss = decimal.Zero
	if in.curRatios.Margin.LessThan(in.baseRatios.Margin.Sub(marginDropDelta)) {
		loss = in.baseRatios.Margin.Sub(in.curRatios.Margin).Mul(in.cur.NetRevenue)
	}
	leaks = append(leaks, newLeak(SignalMarginCompression, loss, "margin_drop_3pp", in.cur.OrderCount, map[string]decimal.Decimal{
		"margin_w": in.curRatios.Margin,
		"margin_b": in.baseRatios.Margin,
	}))

	// support linked refunds: refunds above the baseline run rate, scaled
	// to the window length, once tickets and refunds both grow
	loss = decimal.Zero
	ticketsW := decimal.NewFromInt(int64(in.cur.TicketCount))
	ticketsB := decimal.NewFromInt(int64(in.base.TicketCount))
	if ticketsW.GreaterThan(ticketsB.Mul(supportTicketMult)) &&
		in.cur.RefundAmountTotal.GreaterThan(in.base.RefundAmountTotal.Mul(supportRefundMult)) {
		expected := in.base.RefundAmountTotal.Mul(windowFraction(in.win))
		loss = in.cur.RefundAmountTotal.Sub(expected)
	}
	leaks = append(leaks, newLeak(SignalSupportLinkedRefunds, loss, "support_growth_with_refund_growth", in.cur.TicketCount, map[string]decimal.Decimal{
		"tickets_w": ticketsW,
		"tickets_b": ticketsB,
	}))

	// repeat customer churn
	loss = decimal.Zero
	if in.repeatersB > in.repeatersW {
		aov := safeDiv(in.cur.NetRevenue, decimal.NewFromInt(int64(in.cur.OrderCount)))
		loss = decimal.NewFromInt(int64(in.repeatersB - in.repeatersW)).Mul(aov)
	}
	leaks = append(leaks, newLeak(SignalRepeatCustomerChurn, loss, "repeat_customer_decline", in.cur.OrderCount, nil))

	return leaks
}

// windowFraction scales a baseline total down to the current window's length.
func windowFraction(w Window) decimal.Decimal {
	return safeDiv(decimal.NewFromInt(int64(w.WindowDays)), decimal.NewFromInt(int64(w.BaselineDays)))
}

func newLeak(id string, loss decimal.Decimal, reason string, samples int, metrics map[string]decimal.Decimal) Leak {
	if loss.IsNegative() {
		loss = decimal.Zero
	}
	if metrics == nil {
		metrics = map[string]decimal.Decimal{}
	}
	return Leak{
		SignalID:   id,
		LossUSD:    loss.Round(2),
		ReasonCode: reason,
		SampleSize: samples,
		Metrics:    metrics,
	}
}
