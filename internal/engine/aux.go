package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhopkins78/he-revenue-leaks/internal/dataset"
)

// skuRefundConcentration returns the refunded amount attributed to the five
// most refunded SKUs. Each order line inherits the full refunded amount of
// its parent order, so SKUs sharing an order each carry that order's total.
// Ties rank by first appearance in the line stream.
func skuRefundConcentration(lines []dataset.OrderLine, refundsW []dataset.Refund) decimal.Decimal {
	if len(lines) == 0 || len(refundsW) == 0 {
		return decimal.Zero
	}

	refundByOrder := make(map[string]decimal.Decimal, len(refundsW))
	for _, r := range refundsW {
		refundByOrder[r.OrderID] = refundByOrder[r.OrderID].Add(r.RefundAmount)
	}

	totals := make(map[string]decimal.Decimal)
	var seen []string
	for _, l := range lines {
		amt, ok := refundByOrder[l.OrderID]
		if !ok {
			continue
		}
		if _, dup := totals[l.SKUID]; !dup {
			seen = append(seen, l.SKUID)
		}
		totals[l.SKUID] = totals[l.SKUID].Add(amt)
	}

	sort.SliceStable(seen, func(i, j int) bool {
		return totals[seen[i]].GreaterThan(totals[seen[j]])
	})
	if len(seen) > topSKUCount {
		seen = seen[:topSKUCount]
	}

	var sum decimal.Decimal
	for _, sku := range seen {
		sum = sum.Add(totals[sku])
	}
	return sum
}

// couponUsagesInWindow filters redemptions to those whose parent order sits
// in the current window.
func couponUsagesInWindow(usages []dataset.CouponUsage, windowOrders map[string]struct{}) []dataset.CouponUsage {
	out := make([]dataset.CouponUsage, 0, len(usages))
	for _, u := range usages {
		if _, ok := windowOrders[u.OrderID]; ok {
			out = append(out, u)
		}
	}
	return out
}

// couponAbuse sums the discount value of coupon codes redeemed more than
// couponAbuseUsesPerUser times per distinct customer. Codes with no known
// customers never flag.
func couponAbuse(usages []dataset.CouponUsage) decimal.Decimal {
	type codeStats struct {
		uses  int
		users map[string]struct{}
		value decimal.Decimal
	}

	stats := make(map[string]*codeStats)
	for _, u := range usages {
		cs, ok := stats[u.CouponCode]
		if !ok {
			cs = &codeStats{users: make(map[string]struct{})}
			stats[u.CouponCode] = cs
		}
		cs.uses++
		if u.CustomerID != "" {
			cs.users[u.CustomerID] = struct{}{}
		}
		cs.value = cs.value.Add(u.DiscountValue)
	}

	var sum decimal.Decimal
	for _, cs := range stats {
		users := len(cs.users)
		if users > 0 && cs.uses > couponAbuseUsesPerUser*users {
			sum = sum.Add(cs.value)
		}
	}
	return sum
}

// repeatCustomers counts distinct known customers across a window's orders.
func repeatCustomers(orders []dataset.Order) int {
	ids := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		if o.CustomerID != "" {
			ids[o.CustomerID] = struct{}{}
		}
	}
	return len(ids)
}
