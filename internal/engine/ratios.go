package engine

import "github.com/shopspring/decimal"

// RatioSet normalises one window's metrics for cross-window comparison.
// Every ratio is zero when its denominator is zero.
type RatioSet struct {
	RefundRate    decimal.Decimal `json:"refund_rate"`
	DiscountRate  decimal.Decimal `json:"discount_rate"`
	ShippingRatio decimal.Decimal `json:"shipping_ratio"`
	FailedPayRate decimal.Decimal `json:"failed_pay_rate"`
	Margin        decimal.Decimal `json:"margin"`
}

func ratios(m MetricSet) RatioSet {
	return RatioSet{
		RefundRate:    safeDiv(m.RefundAmountTotal, m.NetRevenue),
		DiscountRate:  safeDiv(m.DiscountTotal, m.GrossRevenue),
		ShippingRatio: safeDiv(m.ShippingCostTotal, m.NetRevenue),
		FailedPayRate: safeDiv(decimal.NewFromInt(int64(m.PaymentFailedCount)), decimal.NewFromInt(int64(m.PaymentAttempts))),
		Margin:        safeDiv(m.NetRevenue.Sub(m.COGSTotal).Sub(m.ShippingCostTotal), m.NetRevenue),
	}
}

// safeDiv divides num by den, mapping a zero denominator to zero.
func safeDiv(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}
