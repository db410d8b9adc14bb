// Package server exposes leak evaluation, run history, and connector
// provisioning over a tenant-scoped HTTP API.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhopkins78/he-revenue-leaks/internal/config"
	"github.com/jhopkins78/he-revenue-leaks/internal/connector"
	"github.com/jhopkins78/he-revenue-leaks/internal/dataset"
	"github.com/jhopkins78/he-revenue-leaks/internal/logging"
	"github.com/jhopkins78/he-revenue-leaks/internal/scoring"
	"github.com/jhopkins78/he-revenue-leaks/internal/storage"
)

// RunOutcome is one completed evaluation as returned by the run service.
type RunOutcome struct {
	RunID  uuid.UUID
	RunTS  time.Time
	Report scoring.Report
	Deltas scoring.DeltaSet
}

// RunService executes one evaluation for a tenant.
type RunService interface {
	RunLeaks(ctx context.Context, tenantID string, paths dataset.Paths) (RunOutcome, error)
}

// Server handles the HTTP API.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger
	runs   storage.RunStore
	svc    RunService
}

// New constructs a Server. The run store may be backed by an unconfigured
// pool; history endpoints then report storage as unavailable.
func New(cfg *config.Config, logger zerolog.Logger, runs storage.RunStore, svc RunService) *Server {
	return &Server{
		cfg:    cfg,
		logger: logging.Component(logger, "http"),
		runs:   runs,
		svc:    svc,
	}
}

// Routes assembles the router: a public health probe plus the
// authenticated, tenant-scoped /api tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api", func(api chi.Router) {
		api.Use(s.requireAPIKey)
		api.Use(s.requireTenant)

		api.Route("/templates/revenue-leaks", func(t chi.Router) {
			t.Post("/run", s.handleRunLeaks)
			t.Get("/runs", s.handleListRuns)
			t.Get("/trend", s.handleTrend)
			t.Get("/contracts", s.handleContracts)
		})

		api.Route("/connectors", func(c chi.Router) {
			c.Post("/stripe/sync", s.handleStripeSync)
			c.Get("/stripe/status", s.handleStripeStatus)
			c.Get("/health", s.handleConnectorHealth)
		})
	})

	return r
}

func (s *Server) newStripe(tenantID string) *connector.Stripe {
	sc := s.cfg.Connector.Stripe
	return connector.NewStripe(connector.StripeOptions{
		TenantID:       tenantID,
		APIKey:         sc.APIKey,
		BaseURL:        sc.BaseURL,
		Timeout:        sc.RequestTimeout,
		UserAgent:      sc.UserAgent,
		PageLimit:      sc.PageLimit,
		StateRoot:      sc.StateRoot,
		RawRoot:        sc.RawRoot,
		NormalizedRoot: sc.NormalizedRoot,
	}, s.logger)
}

// apiError is the uniform error payload.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("encode response failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, apiError{Code: code, Message: message})
}
