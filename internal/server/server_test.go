package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhopkins78/he-revenue-leaks/internal/config"
	"github.com/jhopkins78/he-revenue-leaks/internal/dataset"
	"github.com/jhopkins78/he-revenue-leaks/internal/scoring"
	"github.com/jhopkins78/he-revenue-leaks/internal/storage"
)

type stubRunService struct {
	out       RunOutcome
	err       error
	gotTenant string
	gotPaths  dataset.Paths
}

func (s *stubRunService) RunLeaks(ctx context.Context, tenantID string, paths dataset.Paths) (RunOutcome, error) {
	s.gotTenant = tenantID
	s.gotPaths = paths
	if s.err != nil {
		return RunOutcome{}, s.err
	}
	return s.out, nil
}

type stubRunStore struct {
	records  []storage.RunRecord
	points   []storage.TrendPoint
	err      error
	gotLimit int
}

func (s *stubRunStore) InsertRun(ctx context.Context, rec storage.RunRecord) (storage.RunRecord, error) {
	return rec, s.err
}

func (s *stubRunStore) ListRecentRuns(ctx context.Context, tenantID string, limit int) ([]storage.RunRecord, error) {
	s.gotLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	if limit > len(s.records) {
		limit = len(s.records)
	}
	return s.records[:limit], nil
}

func (s *stubRunStore) TrendPoints(ctx context.Context, tenantID string, limit int) ([]storage.TrendPoint, error) {
	s.gotLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.points, nil
}

func (s *stubRunStore) CountRuns(ctx context.Context, tenantID string) (int64, error) {
	return int64(len(s.records)), s.err
}

func (s *stubRunStore) DeleteRunsBefore(ctx context.Context, tenantID string, olderThan time.Time) error {
	return s.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{}
	cfg.Auth.APIKeys = []string{"test-key"}
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Connector.Stripe.StateRoot = filepath.Join(root, "state")
	cfg.Connector.Stripe.RawRoot = filepath.Join(root, "raw")
	cfg.Connector.Stripe.NormalizedRoot = filepath.Join(root, "normalized")
	return cfg
}

func testRouter(cfg *config.Config, runs storage.RunStore, svc RunService) http.Handler {
	return New(cfg, zerolog.Nop(), runs, svc).Routes()
}

func doRequest(t *testing.T, h http.Handler, method, target, apiKey, tenant, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	if tenant != "" {
		req.Header.Set("X-Tenant-Id", tenant)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("解析错误响应失败: %v (%s)", err, rec.Body.String())
	}
	return e
}

func TestHealthzSkipsAuth(t *testing.T) {
	h := testRouter(testConfig(t), &stubRunStore{}, &stubRunService{})

	rec := doRequest(t, h, http.MethodGet, "/healthz", "", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz 状态码 = %d, 期望 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("healthz 响应 = %s", rec.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	cfg := testConfig(t)
	h := testRouter(cfg, &stubRunStore{}, &stubRunService{})

	rec := doRequest(t, h, http.MethodGet, "/api/templates/revenue-leaks/runs", "", "acme", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("缺少 key 状态码 = %d, 期望 401", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "unauthorized" {
		t.Fatalf("错误码 = %s", e.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/templates/revenue-leaks/runs", "wrong-key", "acme", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("错误 key 状态码 = %d, 期望 401", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/templates/revenue-leaks/runs", "test-key", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("合法 key 状态码 = %d, 期望 200: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthFailsClosedWithoutKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.APIKeys = nil
	h := testRouter(cfg, &stubRunStore{}, &stubRunService{})

	rec := doRequest(t, h, http.MethodGet, "/api/templates/revenue-leaks/runs", "", "acme", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("未配置 auth 状态码 = %d, 期望 503", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "auth_not_configured" {
		t.Fatalf("错误码 = %s", e.Code)
	}

	cfg.Auth.AllowAnonymous = true
	rec = doRequest(t, h, http.MethodGet, "/api/templates/revenue-leaks/runs", "", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("允许匿名时状态码 = %d, 期望 200", rec.Code)
	}
}

func TestTenantHeaderValidation(t *testing.T) {
	h := testRouter(testConfig(t), &stubRunStore{}, &stubRunService{})

	rec := doRequest(t, h, http.MethodGet, "/api/templates/revenue-leaks/runs", "test-key", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("缺少租户头状态码 = %d, 期望 400", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "tenant_missing" {
		t.Fatalf("错误码 = %s", e.Code)
	}

	for _, bad := range []string{"a", "-acme", "bad tenant", "x/../y"} {
		rec = doRequest(t, h, http.MethodGet, "/api/templates/revenue-leaks/runs", "test-key", bad, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("租户 %q 状态码 = %d, 期望 400", bad, rec.Code)
		}
		if e := decodeError(t, rec); e.Code != "tenant_invalid" {
			t.Fatalf("租户 %q 错误码 = %s", bad, e.Code)
		}
	}
}

func TestRunLeaks(t *testing.T) {
	svc := &stubRunService{
		out: RunOutcome{
			RunID: uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			RunTS: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			Report: scoring.Report{
				SummaryCards: scoring.SummaryCards{TotalEstimatedLeakUSD: 1234.5, SignalsDetected: 10, HighSeverityCount: 1, NetRevenueWindow: 50000},
			},
		},
	}
	h := testRouter(testConfig(t), &stubRunStore{}, svc)

	body := `{"ordersPath":"data/acme/fact_orders.csv","refundsPath":"data/acme/fact_refunds.csv"}`
	rec := doRequest(t, h, http.MethodPost, "/api/templates/revenue-leaks/run", "test-key", "acme", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("状态码 = %d: %s", rec.Code, rec.Body.String())
	}

	var resp runResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if resp.Status != "success" || resp.Template != scoring.TemplateName || resp.TenantID != "acme" {
		t.Fatalf("响应头部字段 = %s/%s/%s", resp.Status, resp.Template, resp.TenantID)
	}
	if resp.RunID != "11111111-1111-1111-1111-111111111111" {
		t.Fatalf("runId = %s", resp.RunID)
	}
	if resp.Dashboard.SummaryCards.TotalEstimatedLeakUSD != 1234.5 {
		t.Fatalf("dashboard 汇总 = %+v", resp.Dashboard.SummaryCards)
	}
	if svc.gotTenant != "acme" || svc.gotPaths.Orders != "data/acme/fact_orders.csv" {
		t.Fatalf("服务收到的参数 = %s %+v", svc.gotTenant, svc.gotPaths)
	}
}

func TestRunLeaksValidation(t *testing.T) {
	h := testRouter(testConfig(t), &stubRunStore{}, &stubRunService{})

	rec := doRequest(t, h, http.MethodPost, "/api/templates/revenue-leaks/run", "test-key", "acme", `{bad json`)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "invalid_request" {
		t.Fatalf("畸形 JSON: %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodPost, "/api/templates/revenue-leaks/run", "test-key", "acme", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("缺少 ordersPath 状态码 = %d, 期望 400", rec.Code)
	}
	if e := decodeError(t, rec); !strings.Contains(e.Message, "ordersPath") {
		t.Fatalf("错误信息 = %s", e.Message)
	}
}

func TestRunLeaksTenantScopedPaths(t *testing.T) {
	h := testRouter(testConfig(t), &stubRunStore{}, &stubRunService{})

	// 路径中的租户必须是完整的一段, 前缀相同的其它租户不能通过
	rec := doRequest(t, h, http.MethodPost, "/api/templates/revenue-leaks/run", "test-key", "acme",
		`{"ordersPath":"data/acme2/fact_orders.csv"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("跨租户路径状态码 = %d, 期望 400", rec.Code)
	}
	e := decodeError(t, rec)
	if e.Code != "path_not_tenant_scoped" || !strings.Contains(e.Message, "'acme'") {
		t.Fatalf("错误响应 = %+v", e)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/templates/revenue-leaks/run", "test-key", "acme",
		`{"ordersPath":"data/acme/fact_orders.csv","ticketsPath":"data/other/fact_support_tickets.csv"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("混入其它租户路径时应拒绝, 实际 %d", rec.Code)
	}

	// Windows 风格分隔符同样按段校验
	rec = doRequest(t, h, http.MethodPost, "/api/templates/revenue-leaks/run", "test-key", "acme",
		`{"ordersPath":"data\\acme\\fact_orders.csv"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("反斜杠路径状态码 = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRunLeaksEvalFailure(t *testing.T) {
	svc := &stubRunService{err: errors.New("load dataset: boom")}
	h := testRouter(testConfig(t), &stubRunStore{}, svc)

	rec := doRequest(t, h, http.MethodPost, "/api/templates/revenue-leaks/run", "test-key", "acme",
		`{"ordersPath":"data/acme/fact_orders.csv"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("状态码 = %d, 期望 400", rec.Code)
	}
	e := decodeError(t, rec)
	if e.Code != "revenue_leaks_eval_failed" || !strings.Contains(e.Message, "boom") {
		t.Fatalf("错误响应 = %+v", e)
	}
}

func runRecordFixture(t *testing.T, id string, runTS time.Time, total float64, high, signals int) storage.RunRecord {
	t.Helper()
	report := scoring.Report{
		SummaryCards: scoring.SummaryCards{
			TotalEstimatedLeakUSD: total,
			SignalsDetected:       signals,
			HighSeverityCount:     high,
			NetRevenueWindow:      50000,
		},
	}
	body, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("构造报表失败: %v", err)
	}
	return storage.RunRecord{
		ID:                1,
		RunID:             uuid.MustParse(id),
		TenantID:          "acme",
		RunTS:             runTS,
		TotalLeakUSD:      decimal.NewFromFloat(total),
		SignalsDetected:   signals,
		HighSeverityCount: high,
		Report:            body,
	}
}

func TestListRuns(t *testing.T) {
	newer := runRecordFixture(t, "11111111-1111-1111-1111-111111111111", time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC), 1500, 2, 10)
	older := runRecordFixture(t, "22222222-2222-2222-2222-222222222222", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), 1000, 1, 10)
	corrupt := older
	corrupt.RunID = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	corrupt.Report = []byte(`{broken`)

	store := &stubRunStore{records: []storage.RunRecord{newer, older, corrupt}}
	h := testRouter(testConfig(t), store, &stubRunService{})

	rec := doRequest(t, h, http.MethodGet, "/api/templates/revenue-leaks/runs", "test-key", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("状态码 = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status string           `json:"status"`
		Count  int              `json:"count"`
		Latest *runSummary      `json:"latest"`
		Deltas scoring.DeltaSet `json:"deltas"`
		Trend  []trendEntry     `json:"trend"`
		Runs   []runSummary     `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}

	// 损坏的报表被跳过, 不影响其余运行
	if resp.Count != 2 || len(resp.Runs) != 2 {
		t.Fatalf("count = %d / runs = %d, 期望 2", resp.Count, len(resp.Runs))
	}
	if resp.Latest == nil || resp.Latest.RunID != "11111111-1111-1111-1111-111111111111" {
		t.Fatalf("latest = %+v", resp.Latest)
	}
	if resp.Deltas.TotalEstimatedLeakUSDDelta == nil || *resp.Deltas.TotalEstimatedLeakUSDDelta != 500 {
		t.Fatalf("deltas = %+v", resp.Deltas)
	}
	if resp.Deltas.HighSeverityCountDelta == nil || *resp.Deltas.HighSeverityCountDelta != 1 {
		t.Fatalf("high delta = %+v", resp.Deltas.HighSeverityCountDelta)
	}
	// 趋势序列按时间正序, 最老的在前
	if len(resp.Trend) != 2 || !resp.Trend[0].RunTS.Before(resp.Trend[1].RunTS) {
		t.Fatalf("trend = %+v", resp.Trend)
	}
}

func TestListRunsLimitClamped(t *testing.T) {
	store := &stubRunStore{}
	h := testRouter(testConfig(t), store, &stubRunService{})

	doRequest(t, h, http.MethodGet, "/api/templates/revenue-leaks/runs?limit=9999", "test-key", "acme", "")
	if store.gotLimit != 200 {
		t.Fatalf("limit = %d, 期望被钳制到 200", store.gotLimit)
	}

	doRequest(t, h, http.MethodGet, "/api/templates/revenue-leaks/runs?limit=0", "test-key", "acme", "")
	if store.gotLimit != 1 {
		t.Fatalf("limit = %d, 期望被钳制到 1", store.gotLimit)
	}

	doRequest(t, h, http.MethodGet, "/api/templates/revenue-leaks/runs", "test-key", "acme", "")
	if store.gotLimit != 30 {
		t.Fatalf("默认 limit = %d, 期望 30", store.gotLimit)
	}
}

func TestListRunsStorageUnavailable(t *testing.T) {
	store := &stubRunStore{err: storage.ErrNotConfigured}
	h := testRouter(testConfig(t), store, &stubRunService{})

	rec := doRequest(t, h, http.MethodGet, "/api/templates/revenue-leaks/runs", "test-key", "acme", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("状态码 = %d, 期望 503", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "storage_not_configured" {
		t.Fatalf("错误码 = %s", e.Code)
	}

	store.err = errors.New("connection reset")
	rec = doRequest(t, h, http.MethodGet, "/api/templates/revenue-leaks/runs", "test-key", "acme", "")
	if rec.Code != http.StatusInternalServerError || decodeError(t, rec).Code != "storage_error" {
		t.Fatalf("一般性存储错误: %d %s", rec.Code, rec.Body.String())
	}
}

func TestTrendEndpoint(t *testing.T) {
	store := &stubRunStore{points: []storage.TrendPoint{
		{RunTS: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), TotalLeakUSD: decimal.RequireFromString("1200.50"), HighSeverityCount: 2, SignalsDetected: 10},
		{RunTS: time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC), TotalLeakUSD: decimal.RequireFromString("900"), HighSeverityCount: 1, SignalsDetected: 10},
	}}
	h := testRouter(testConfig(t), store, &stubRunService{})

	rec := doRequest(t, h, http.MethodGet, "/api/templates/revenue-leaks/trend?limit=500", "test-key", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("状态码 = %d: %s", rec.Code, rec.Body.String())
	}
	if store.gotLimit != 365 {
		t.Fatalf("limit = %d, 期望被钳制到 365", store.gotLimit)
	}

	var resp struct {
		Count  int          `json:"count"`
		Points []trendPoint `json:"points"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if resp.Count != 2 || len(resp.Points) != 2 {
		t.Fatalf("points = %+v", resp)
	}
	if resp.Points[0].LeakUSD != 1200.5 || resp.Points[0].High != 2 {
		t.Fatalf("首个点 = %+v", resp.Points[0])
	}
}

func TestContractsEndpoint(t *testing.T) {
	h := testRouter(testConfig(t), &stubRunStore{}, &stubRunService{})

	rec := doRequest(t, h, http.MethodGet, "/api/templates/revenue-leaks/contracts", "test-key", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("状态码 = %d", rec.Code)
	}

	var resp struct {
		Contracts struct {
			Dashboard struct {
				SummaryCards []string `json:"summaryCards"`
			} `json:"dashboard"`
		} `json:"contracts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(resp.Contracts.Dashboard.SummaryCards) != 4 {
		t.Fatalf("summaryCards 契约 = %v", resp.Contracts.Dashboard.SummaryCards)
	}
}

func TestStripeSyncNotConfigured(t *testing.T) {
	h := testRouter(testConfig(t), &stubRunStore{}, &stubRunService{})

	rec := doRequest(t, h, http.MethodPost, "/api/connectors/stripe/sync", "test-key", "acme", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("状态码 = %d, 期望 503", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "stripe_not_configured" {
		t.Fatalf("错误码 = %s", e.Code)
	}
}

func TestStripeSyncPageLimitValidation(t *testing.T) {
	cfg := testConfig(t)
	cfg.Connector.Stripe.APIKey = "sk_test_123"
	h := testRouter(cfg, &stubRunStore{}, &stubRunService{})

	rec := doRequest(t, h, http.MethodPost, "/api/connectors/stripe/sync", "test-key", "acme", `{"pageLimit":101}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("状态码 = %d, 期望 400", rec.Code)
	}
	if e := decodeError(t, rec); !strings.Contains(e.Message, "pageLimit") {
		t.Fatalf("错误信息 = %s", e.Message)
	}
}

func TestStripeSyncEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"ch_1","created":100,"livemode":true}],"has_more":false}`)
	}))
	defer upstream.Close()

	cfg := testConfig(t)
	cfg.Connector.Stripe.APIKey = "sk_test_123"
	cfg.Connector.Stripe.BaseURL = upstream.URL
	h := testRouter(cfg, &stubRunStore{}, &stubRunService{})

	rec := doRequest(t, h, http.MethodPost, "/api/connectors/stripe/sync", "test-key", "acme", `{"entities":["charges"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("状态码 = %d: %s", rec.Code, rec.Body.String())
	}

	var resp stripeSyncResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if !strings.HasPrefix(resp.RunID, "stripe_sync_acme_") {
		t.Fatalf("runId = %s", resp.RunID)
	}
	if resp.ConnectorStatus != "success" || resp.RecordsSynced != 1 {
		t.Fatalf("同步结果 = %+v", resp)
	}
	if resp.Entities["charges"].Records != 1 {
		t.Fatalf("charges 明细 = %+v", resp.Entities["charges"])
	}
}

func TestStripeSyncUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"boom"}}`)
	}))
	defer upstream.Close()

	cfg := testConfig(t)
	cfg.Connector.Stripe.APIKey = "sk_test_123"
	cfg.Connector.Stripe.BaseURL = upstream.URL
	h := testRouter(cfg, &stubRunStore{}, &stubRunService{})

	rec := doRequest(t, h, http.MethodPost, "/api/connectors/stripe/sync", "test-key", "acme", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("状态码 = %d, 期望 502", rec.Code)
	}
	e := decodeError(t, rec)
	if e.Code != "stripe_sync_failed" || !strings.Contains(e.Reason, "boom") {
		t.Fatalf("错误响应 = %+v", e)
	}
}

func TestStripeStatusEndpoint(t *testing.T) {
	h := testRouter(testConfig(t), &stubRunStore{}, &stubRunService{})

	rec := doRequest(t, h, http.MethodGet, "/api/connectors/stripe/status", "test-key", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("状态码 = %d", rec.Code)
	}

	var resp stripeStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if resp.TenantID != "acme" || resp.Configured || resp.ConnectorStatus != "not_configured" {
		t.Fatalf("状态 = %+v", resp)
	}
}

func TestConnectorHealthEndpoint(t *testing.T) {
	cfg := testConfig(t)
	h := testRouter(cfg, &stubRunStore{}, &stubRunService{})

	rec := doRequest(t, h, http.MethodGet, "/api/connectors/health", "test-key", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("状态码 = %d", rec.Code)
	}
	var entries []connectorHealthEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "stripe" || entries[0].Status != "unknown" {
		t.Fatalf("默认健康条目 = %+v", entries)
	}

	// 持久化的健康快照优先
	dir := filepath.Join(cfg.Connector.Stripe.StateRoot, "acme")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("准备健康目录失败: %v", err)
	}
	snapshot := `{"name":"stripe","tenant_id":"acme","status":"healthy","configured":true,"last_run_ts":"2026-08-01T00:00:00Z","last_error":null}`
	if err := os.WriteFile(filepath.Join(dir, "stripe_health.json"), []byte(snapshot), 0o644); err != nil {
		t.Fatalf("写入健康快照失败: %v", err)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/connectors/health", "test-key", "acme", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if entries[0].Status != "healthy" || entries[0].LastRunTS == nil {
		t.Fatalf("健康条目 = %+v", entries[0])
	}
}
