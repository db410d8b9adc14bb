package scoring

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(value string) decimal.Decimal { return decimal.RequireFromString(value) }

func TestSeverity(t *testing.T) {
	cases := []struct {
		name string
		loss string
		net  string
		want string
	}{
		{"high ratio boundary", "800", "10000", SeverityHigh},
		{"high absolute floor", "10000", "1000000", SeverityHigh},
		{"medium ratio boundary", "300", "10000", SeverityMedium},
		{"medium absolute floor", "2500", "1000000", SeverityMedium},
		{"below medium ratio", "299.99", "10000", SeverityLow},
		{"low", "200", "10000", SeverityLow},
		{"zero loss", "0", "0", SeverityLow},
		{"tiny window floors the denominator", "0.5", "0", SeverityHigh},
	}
	for _, c := range cases {
		if got := Severity(d(c.loss), d(c.net)); got != c.want {
			t.Errorf("%s: Severity(%s, %s) = %s, want %s", c.name, c.loss, c.net, got, c.want)
		}
	}
}

func TestConfidence(t *testing.T) {
	cases := []struct {
		name         string
		samples      int
		completeness float64
		want         float64
	}{
		{"no samples", 0, 1.0, 0.68},
		{"saturated volume", 1000, 1.0, 1.0},
		{"over-saturated volume stays capped", 5000, 1.0, 1.0},
		{"half volume", 500, 1.0, 0.88},
		{"rounded to two decimals", 37, 1.0, 0.69},
		{"floor", 0, 0, 0.1},
	}
	for _, c := range cases {
		if got := Confidence(c.samples, c.completeness); got != c.want {
			t.Errorf("%s: Confidence(%d, %g) = %g, want %g", c.name, c.samples, c.completeness, got, c.want)
		}
	}
}
