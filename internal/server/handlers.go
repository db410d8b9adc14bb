package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jhopkins78/he-revenue-leaks/internal/connector"
	"github.com/jhopkins78/he-revenue-leaks/internal/dataset"
	"github.com/jhopkins78/he-revenue-leaks/internal/scoring"
	"github.com/jhopkins78/he-revenue-leaks/internal/storage"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runRequest struct {
	OrdersPath     string `json:"ordersPath"`
	OrderLinesPath string `json:"orderLinesPath"`
	RefundsPath    string `json:"refundsPath"`
	PaymentsPath   string `json:"paymentsPath"`
	TicketsPath    string `json:"ticketsPath"`
	DiscountsPath  string `json:"discountsPath"`
}

type runResponse struct {
	Status    string           `json:"status"`
	Template  string           `json:"template"`
	TenantID  string           `json:"tenantId"`
	RunID     string           `json:"runId"`
	RunTS     time.Time        `json:"runTs"`
	Dashboard scoring.Report   `json:"dashboard"`
	Deltas    scoring.DeltaSet `json:"deltas"`
}

func (s *Server) handleRunLeaks(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r.Context())

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}
	if strings.TrimSpace(req.OrdersPath) == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "ordersPath is required")
		return
	}

	paths := dataset.Paths{
		Orders:       req.OrdersPath,
		OrderLines:   req.OrderLinesPath,
		Refunds:      req.RefundsPath,
		Payments:     req.PaymentsPath,
		Tickets:      req.TicketsPath,
		CouponUsages: req.DiscountsPath,
	}
	for _, p := range []string{paths.Orders, paths.OrderLines, paths.Refunds, paths.Payments, paths.Tickets, paths.CouponUsages} {
		if p != "" && !pathIncludesTenant(p, tenant) {
			s.writeError(w, http.StatusBadRequest, "path_not_tenant_scoped", "Path must include tenant id '"+tenant+"'")
			return
		}
	}

	out, err := s.svc.RunLeaks(r.Context(), tenant, paths)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "revenue_leaks_eval_failed", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, runResponse{
		Status:    "success",
		Template:  scoring.TemplateName,
		TenantID:  tenant,
		RunID:     out.RunID.String(),
		RunTS:     out.RunTS,
		Dashboard: out.Report,
		Deltas:    out.Deltas,
	})
}

// pathIncludesTenant enforces tenant isolation on caller-supplied paths:
// the tenant id must appear as a full path segment.
func pathIncludesTenant(p, tenant string) bool {
	clean := strings.ReplaceAll(p, "\\", "/")
	for _, seg := range strings.Split(path.Clean(clean), "/") {
		if seg == tenant {
			return true
		}
	}
	return false
}

type runSummary struct {
	RunID        string                 `json:"runId"`
	RunTS        time.Time              `json:"runTs"`
	TenantID     string                 `json:"tenantId"`
	Template     string                 `json:"template"`
	SummaryCards scoring.SummaryCards   `json:"summaryCards"`
	Window       scoring.WindowBounds   `json:"window"`
	TopLeaks     []scoring.ScoredSignal `json:"topLeaks"`
}

type trendEntry struct {
	RunTS                 time.Time `json:"runTs"`
	TotalEstimatedLeakUSD float64   `json:"totalEstimatedLeakUsd"`
	HighSeverityCount     int       `json:"highSeverityCount"`
	SignalsDetected       int       `json:"signalsDetected"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r.Context())
	limit := clampedQueryInt(r, "limit", 30, 1, 200)

	records, err := s.runs.ListRecentRuns(r.Context(), tenant, limit)
	if err != nil {
		s.storageError(w, err)
		return
	}

	summaries := make([]runSummary, 0, len(records))
	for _, rec := range records {
		sum, ok := s.summaryFromRecord(rec)
		if !ok {
			continue
		}
		summaries = append(summaries, sum)
	}

	trend := make([]trendEntry, 0, len(summaries))
	for i := len(summaries) - 1; i >= 0; i-- {
		sum := summaries[i]
		trend = append(trend, trendEntry{
			RunTS:                 sum.RunTS,
			TotalEstimatedLeakUSD: sum.SummaryCards.TotalEstimatedLeakUSD,
			HighSeverityCount:     sum.SummaryCards.HighSeverityCount,
			SignalsDetected:       sum.SummaryCards.SignalsDetected,
		})
	}

	var latest *runSummary
	var deltas scoring.DeltaSet
	if len(summaries) > 0 {
		latest = &summaries[0]
		if len(summaries) > 1 {
			deltas = scoring.Deltas(summaries[0].SummaryCards, &summaries[1].SummaryCards)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"template": scoring.TemplateName,
		"tenantId": tenant,
		"count":    len(summaries),
		"latest":   latest,
		"deltas":   deltas,
		"trend":    trend,
		"runs":     summaries,
	})
}

func (s *Server) summaryFromRecord(rec storage.RunRecord) (runSummary, bool) {
	var report scoring.Report
	if err := json.Unmarshal(rec.Report, &report); err != nil {
		s.logger.Warn().Err(err).Int64("id", rec.ID).Msg("skipping run with corrupt report")
		return runSummary{}, false
	}
	return runSummary{
		RunID:        rec.RunID.String(),
		RunTS:        rec.RunTS,
		TenantID:     rec.TenantID,
		Template:     scoring.TemplateName,
		SummaryCards: report.SummaryCards,
		Window:       report.Window,
		TopLeaks:     report.TopLeaks,
	}, true
}

type trendPoint struct {
	T       time.Time `json:"t"`
	LeakUSD float64   `json:"leakUsd"`
	High    int       `json:"high"`
	Signals int       `json:"signals"`
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r.Context())
	limit := clampedQueryInt(r, "limit", 60, 1, 365)

	points, err := s.runs.TrendPoints(r.Context(), tenant, limit)
	if err != nil {
		s.storageError(w, err)
		return
	}

	out := make([]trendPoint, 0, len(points))
	for _, p := range points {
		out = append(out, trendPoint{
			T:       p.RunTS,
			LeakUSD: p.TotalLeakUSD.InexactFloat64(),
			High:    p.HighSeverityCount,
			Signals: p.SignalsDetected,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"template": scoring.TemplateName,
		"tenantId": tenant,
		"count":    len(out),
		"points":   out,
	})
}

func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"tenantId": tenant,
		"template": scoring.TemplateName,
		"contracts": map[string]any{
			"dashboard": map[string]any{
				"summaryCards": []string{
					"totalEstimatedLeakUsd",
					"signalsDetected",
					"highSeverityCount",
					"netRevenueWindow",
				},
				"topLeaks":   "array<signal>",
				"allSignals": "array<signal>",
			},
			"trend": map[string]any{
				"point": map[string]string{"t": "iso8601", "leakUsd": "number", "high": "int", "signals": "int"},
			},
		},
	})
}

func (s *Server) storageError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotConfigured) {
		s.writeError(w, http.StatusServiceUnavailable, "storage_not_configured", "Run history storage is not configured")
		return
	}
	s.logger.Error().Err(err).Msg("run history query failed")
	s.writeError(w, http.StatusInternalServerError, "storage_error", "Run history query failed")
}

type stripeSyncRequest struct {
	Entities   []string `json:"entities"`
	SinceEpoch *int64   `json:"sinceEpoch"`
	PageLimit  int      `json:"pageLimit"`
}

type stripeSyncResponse struct {
	RunID           string                            `json:"runId"`
	TenantID        string                            `json:"tenantId"`
	StartedAt       time.Time                         `json:"startedAt"`
	FinishedAt      time.Time                         `json:"finishedAt"`
	DurationSeconds float64                           `json:"durationSeconds"`
	ConnectorStatus string                            `json:"connectorStatus"`
	RecordsSynced   int                               `json:"recordsSynced"`
	Entities        map[string]connector.EntityDetail `json:"entities"`
	CursorPath      string                            `json:"cursorPath"`
}

func (s *Server) handleStripeSync(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r.Context())

	if s.cfg.Connector.Stripe.APIKey == "" {
		s.writeError(w, http.StatusServiceUnavailable, "stripe_not_configured",
			"Stripe connector is not configured. Set connector.stripe.api_key on the server.")
		return
	}

	req := stripeSyncRequest{PageLimit: 100}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
			return
		}
	}
	if req.PageLimit < 1 || req.PageLimit > 100 {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "pageLimit must be between 1 and 100")
		return
	}

	started := time.Now().UTC()
	runID := "stripe_sync_" + tenant + "_" + started.Format("20060102_150405")

	stripe := s.newStripe(tenant)
	result, err := stripe.Sync(r.Context(), connector.SyncOptions{
		Entities:   req.Entities,
		SinceEpoch: req.SinceEpoch,
		PageLimit:  req.PageLimit,
	})
	if err != nil {
		if errors.Is(err, connector.ErrNoAPIKey) {
			s.writeError(w, http.StatusBadRequest, "invalid_configuration", err.Error())
			return
		}
		s.writeJSON(w, http.StatusBadGateway, apiError{
			Code:    "stripe_sync_failed",
			Message: "Stripe sync failed",
			Reason:  err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, stripeSyncResponse{
		RunID:           runID,
		TenantID:        tenant,
		StartedAt:       result.StartedAt,
		FinishedAt:      result.FinishedAt,
		DurationSeconds: math.Round(result.FinishedAt.Sub(result.StartedAt).Seconds()*1000) / 1000,
		ConnectorStatus: result.Status,
		RecordsSynced:   result.RecordsSynced,
		Entities:        result.Entities,
		CursorPath:      result.CursorPath,
	})
}

type stripeStatusResponse struct {
	TenantID               string           `json:"tenantId"`
	Configured             bool             `json:"configured"`
	ConnectorStatus        string           `json:"connectorStatus"`
	CursorPath             string           `json:"cursorPath"`
	Cursor                 map[string]int64 `json:"cursor"`
	LastRawArtifact        *string          `json:"lastRawArtifact"`
	LastNormalizedArtifact *string          `json:"lastNormalizedArtifact"`
}

func (s *Server) handleStripeStatus(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r.Context())
	st := s.newStripe(tenant).Status()

	s.writeJSON(w, http.StatusOK, stripeStatusResponse{
		TenantID:               st.TenantID,
		Configured:             st.Configured,
		ConnectorStatus:        st.ConnectorStatus,
		CursorPath:             st.CursorPath,
		Cursor:                 st.Cursor,
		LastRawArtifact:        st.LastRawArtifact,
		LastNormalizedArtifact: st.LastNormalizedArtifact,
	})
}

type connectorHealthEntry struct {
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	Configured bool    `json:"configured"`
	LastRunTS  *string `json:"lastRunTs"`
	LastError  *string `json:"lastError"`
}

func (s *Server) handleConnectorHealth(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r.Context())
	stripe := s.newStripe(tenant)

	entry := connectorHealthEntry{
		Name:       "stripe",
		Status:     "unknown",
		Configured: stripe.Configured(),
	}
	if h, ok := stripe.ReadHealth(); ok {
		entry.Status = h.Status
		entry.Configured = h.Configured
		if h.LastRunTS != "" {
			ts := h.LastRunTS
			entry.LastRunTS = &ts
		}
		entry.LastError = h.LastError
	}

	s.writeJSON(w, http.StatusOK, []connectorHealthEntry{entry})
}

func clampedQueryInt(r *http.Request, name string, def, lo, hi int) int {
	v := def
	if raw := r.URL.Query().Get(name); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			v = parsed
		}
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}
