package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Paths names the source file for each fact stream. Empty entries and
// missing files load as empty streams.
type Paths struct {
	Orders       string
	OrderLines   string
	Refunds      string
	Payments     string
	Tickets      string
	CouponUsages string
}

// DefaultPaths resolves the conventional fact table layout for a tenant,
// preferring CSV and falling back to JSONL or JSON when present.
func DefaultPaths(root, tenant string) Paths {
	dir := filepath.Join(root, tenant)
	return Paths{
		Orders:       probe(dir, "fact_orders"),
		OrderLines:   probe(dir, "fact_order_lines"),
		Refunds:      probe(dir, "fact_refunds"),
		Payments:     probe(dir, "fact_payments"),
		Tickets:      probe(dir, "fact_support_tickets"),
		CouponUsages: probe(dir, "fact_discounts"),
	}
}

func probe(dir, stem string) string {
	for _, ext := range []string{".csv", ".jsonl", ".json"} {
		candidate := filepath.Join(dir, stem+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return filepath.Join(dir, stem+".csv")
}

// Load reads every configured stream into a Dataset. Streams whose path is
// empty or whose file does not exist come back empty; rows with malformed
// timestamps or negative money amounts fail the load.
func Load(paths Paths) (Dataset, error) {
	var ds Dataset
	var err error

	if ds.Orders, err = loadOrders(paths.Orders); err != nil {
		return Dataset{}, err
	}
	if ds.OrderLines, err = loadOrderLines(paths.OrderLines); err != nil {
		return Dataset{}, err
	}
	if ds.Refunds, err = loadRefunds(paths.Refunds); err != nil {
		return Dataset{}, err
	}
	if ds.Payments, err = loadPayments(paths.Payments); err != nil {
		return Dataset{}, err
	}
	if ds.Tickets, err = loadTickets(paths.Tickets); err != nil {
		return Dataset{}, err
	}
	if ds.CouponUsages, err = loadCouponUsages(paths.CouponUsages); err != nil {
		return Dataset{}, err
	}

	return ds, nil
}

func loadOrders(path string) ([]Order, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(rows))
	for i, r := range rows {
		rec := Order{
			OrderID:    r["order_id"],
			CustomerID: r["customer_id"],
		}
		if rec.OrderID == "" {
			return nil, rowErr(path, i, "order_id is empty")
		}
		if rec.OrderTS, err = parseTime(path, i, r, "order_ts"); err != nil {
			return nil, err
		}
		if rec.GrossRevenue, err = parseMoney(path, i, r, "gross_revenue"); err != nil {
			return nil, err
		}
		if rec.DiscountAmount, err = parseMoney(path, i, r, "discount_amount"); err != nil {
			return nil, err
		}
		if rec.NetRevenue, err = parseMoney(path, i, r, "net_revenue"); err != nil {
			return nil, err
		}
		if rec.ShippingCost, err = parseMoney(path, i, r, "shipping_cost"); err != nil {
			return nil, err
		}
		if rec.COGSTotal, err = parseMoney(path, i, r, "cogs_total"); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func loadOrderLines(path string) ([]OrderLine, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	out := make([]OrderLine, 0, len(rows))
	for i, r := range rows {
		rec := OrderLine{
			OrderID: r["order_id"],
			LineID:  r["line_id"],
			SKUID:   r["sku_id"],
		}
		if rec.OrderID == "" {
			return nil, rowErr(path, i, "order_id is empty")
		}
		if rec.Qty, err = parseCount(path, i, r, "qty"); err != nil {
			return nil, err
		}
		if rec.LineNet, err = parseMoney(path, i, r, "line_net"); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func loadRefunds(path string) ([]Refund, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	out := make([]Refund, 0, len(rows))
	for i, r := range rows {
		rec := Refund{
			RefundID: r["refund_id"],
			OrderID:  r["order_id"],
			Reason:   r["refund_reason"],
		}
		if rec.OrderID == "" {
			return nil, rowErr(path, i, "order_id is empty")
		}
		if rec.RefundTS, err = parseTime(path, i, r, "refund_ts"); err != nil {
			return nil, err
		}
		if rec.RefundAmount, err = parseMoney(path, i, r, "refund_amount"); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func loadPayments(path string) ([]Payment, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	out := make([]Payment, 0, len(rows))
	for i, r := range rows {
		rec := Payment{
			PaymentID: r["payment_id"],
			OrderID:   r["order_id"],
			Status:    PaymentStatus(strings.ToLower(strings.TrimSpace(r["status"]))),
		}
		if rec.OrderID == "" {
			return nil, rowErr(path, i, "order_id is empty")
		}
		if rec.PaymentTS, err = parseTime(path, i, r, "payment_ts"); err != nil {
			return nil, err
		}
		if rec.Amount, err = parseMoney(path, i, r, "amount"); err != nil {
			return nil, err
		}
		if rec.DisputeAmount, err = parseMoney(path, i, r, "dispute_amount"); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func loadTickets(path string) ([]SupportTicket, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	out := make([]SupportTicket, 0, len(rows))
	for i, r := range rows {
		rec := SupportTicket{
			TicketID:   r["ticket_id"],
			CustomerID: r["customer_id"],
			Topic:      r["topic"],
		}
		if rec.CreatedTS, err = parseTime(path, i, r, "created_ts"); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func loadCouponUsages(path string) ([]CouponUsage, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	out := make([]CouponUsage, 0, len(rows))
	for i, r := range rows {
		rec := CouponUsage{
			EventID:    r["discount_event_id"],
			OrderID:    r["order_id"],
			CouponCode: r["coupon_code"],
			CustomerID: r["customer_id"],
		}
		if rec.DiscountValue, err = parseMoney(path, i, r, "discount_value"); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

type row map[string]string

func readTable(path string) ([]row, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path, f)
	case ".jsonl", ".ndjson":
		return readJSONStream(path, f)
	case ".json":
		return readJSONArray(path, f)
	default:
		return nil, fmt.Errorf("unsupported fact table format: %s", path)
	}
}

func readCSV(path string, f io.Reader) ([]row, error) {
	rd := csv.NewReader(f)
	rd.TrimLeadingSpace = true
	header, err := rd.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var rows []row
	for {
		record, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		r := make(row, len(header))
		for i, name := range header {
			if i < len(record) {
				r[name] = record[i]
			}
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func readJSONStream(path string, f io.Reader) ([]row, error) {
	dec := json.NewDecoder(f)
	dec.UseNumber()

	var rows []row
	for {
		var obj map[string]any
		if err := dec.Decode(&obj); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		rows = append(rows, coerceRow(obj))
	}
	return rows, nil
}

func readJSONArray(path string, f io.Reader) ([]row, error) {
	dec := json.NewDecoder(f)
	dec.UseNumber()

	var objs []map[string]any
	if err := dec.Decode(&objs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	rows := make([]row, 0, len(objs))
	for _, obj := range objs {
		rows = append(rows, coerceRow(obj))
	}
	return rows, nil
}

func coerceRow(obj map[string]any) row {
	r := make(row, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
			r[k] = ""
		case string:
			r[k] = val
		case json.Number:
			r[k] = val.String()
		case bool:
			r[k] = strconv.FormatBool(val)
		default:
			r[k] = fmt.Sprint(val)
		}
	}
	return r
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(path string, i int, r row, key string) (time.Time, error) {
	raw := strings.TrimSpace(r[key])
	if raw == "" {
		return time.Time{}, rowErr(path, i, fmt.Sprintf("%s is empty", key))
	}
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, rowErr(path, i, fmt.Sprintf("invalid %s %q", key, raw))
}

func parseMoney(path string, i int, r row, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(r[key])
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, rowErr(path, i, fmt.Sprintf("invalid %s %q", key, raw))
	}
	if d.IsNegative() {
		return decimal.Decimal{}, rowErr(path, i, fmt.Sprintf("negative %s %q", key, raw))
	}
	return d, nil
}

func parseCount(path string, i int, r row, key string) (int, error) {
	raw := strings.TrimSpace(r[key])
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, rowErr(path, i, fmt.Sprintf("invalid %s %q", key, raw))
	}
	if n < 0 {
		return 0, rowErr(path, i, fmt.Sprintf("negative %s %q", key, raw))
	}
	return n, nil
}

func rowErr(path string, i int, msg string) error {
	return fmt.Errorf("%s row %d: %s", path, i+1, msg)
}
