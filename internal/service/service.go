package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhopkins78/he-revenue-leaks/internal/alerting"
	"github.com/jhopkins78/he-revenue-leaks/internal/config"
	"github.com/jhopkins78/he-revenue-leaks/internal/dataset"
	"github.com/jhopkins78/he-revenue-leaks/internal/engine"
	"github.com/jhopkins78/he-revenue-leaks/internal/scheduler"
	"github.com/jhopkins78/he-revenue-leaks/internal/scoring"
	"github.com/jhopkins78/he-revenue-leaks/internal/storage"
)

// Service orchestrates dataset loading, evaluation, persistence, and alerting.
type Service struct {
	scheduler *scheduler.Scheduler
	store     storage.RunStore
	notifier  alerting.Notifier
	logger    zerolog.Logger

	dataRoot     string
	tenants      []string
	windowDays   int
	baselineDays int
	minLeakUSD   decimal.Decimal
	channels     []string
	alertsOn     bool
	locker       storage.AdvisoryLocker
	lockKey      int64
}

// Outcome is the result of one evaluation run for one tenant.
type Outcome struct {
	RunID  uuid.UUID
	RunTS  time.Time
	Report scoring.Report
	Deltas scoring.DeltaSet
}

// New constructs the evaluation service.
func New(cfg *config.Config, sched *scheduler.Scheduler, store storage.RunStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	minLeak := decimal.Zero
	if cfg.Alerting.Enabled && cfg.Alerting.MinTotalLeakUSD > 0 {
		minLeak = decimal.NewFromFloat(cfg.Alerting.MinTotalLeakUSD)
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:    sched,
		store:        store,
		notifier:     notifier,
		logger:       logger.With().Str("component", "service").Logger(),
		dataRoot:     cfg.App.DataRoot,
		tenants:      cfg.Scheduler.Tenants,
		windowDays:   cfg.Engine.WindowDays,
		baselineDays: cfg.Engine.BaselineDays,
		minLeakUSD:   minLeak,
		channels:     cfg.Alerting.Channels,
		alertsOn:     cfg.Alerting.Enabled,
		locker:       locker,
		lockKey:      cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the scheduled evaluation loop over all configured tenants.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	if len(s.tenants) == 0 {
		return fmt.Errorf("scheduler.tenants not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick 执行单次计划内的全租户评估。
func (s *Service) ProcessTick(ctx context.Context, due time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("due", due).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	for _, tenant := range s.tenants {
		paths := dataset.DefaultPaths(s.dataRoot, tenant)
		if _, err := s.RunTenant(ctx, tenant, paths); err != nil {
			s.logger.Error().Err(err).Str("tenant_id", tenant).Msg("scheduled evaluation failed")
		}
	}
	return nil
}

// RunTenant loads the tenant's streams, evaluates all leak signals, persists
// the run, and dispatches an alert when the estimated leak crosses the
// configured floor. Storage and alerting failures are logged, not fatal; the
// evaluation result is still returned.
func (s *Service) RunTenant(ctx context.Context, tenantID string, paths dataset.Paths) (Outcome, error) {
	ds, err := dataset.Load(paths)
	if err != nil {
		return Outcome{}, fmt.Errorf("load dataset: %w", err)
	}

	res := engine.Evaluate(ds, engine.Params{
		WindowDays:   s.windowDays,
		BaselineDays: s.baselineDays,
	})
	report := scoring.BuildReport(res)

	runID := uuid.New()
	runTS := time.Now().UTC()

	var prevCards *scoring.SummaryCards
	if s.store != nil {
		prevCards = s.previousCards(ctx, tenantID)
		s.persistRun(ctx, tenantID, runID, runTS, res, report)
	}
	deltas := scoring.Deltas(report.SummaryCards, prevCards)

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("run_id", runID.String()).
		Float64("total_leak_usd", report.SummaryCards.TotalEstimatedLeakUSD).
		Int("high_severity", report.SummaryCards.HighSeverityCount).
		Msg("evaluation run complete")

	s.maybeAlert(ctx, tenantID, runTS, res, report)

	return Outcome{RunID: runID, RunTS: runTS, Report: report, Deltas: deltas}, nil
}

func (s *Service) previousCards(ctx context.Context, tenantID string) *scoring.SummaryCards {
	recs, err := s.store.ListRecentRuns(ctx, tenantID, 1)
	if err != nil {
		s.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("failed to load previous run")
		return nil
	}
	if len(recs) == 0 {
		return nil
	}
	var prev scoring.Report
	if err := json.Unmarshal(recs[0].Report, &prev); err != nil {
		s.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("previous run report is corrupt")
		return nil
	}
	return &prev.SummaryCards
}

func (s *Service) persistRun(ctx context.Context, tenantID string, runID uuid.UUID, runTS time.Time, res engine.Result, report scoring.Report) {
	body, err := json.Marshal(report)
	if err != nil {
		s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to encode report")
		return
	}

	rec := storage.RunRecord{
		RunID:             runID,
		TenantID:          tenantID,
		RunTS:             runTS,
		WindowStart:       res.Window.WindowStart,
		WindowEnd:         res.Window.WindowEnd,
		BaselineStart:     res.Window.BaselineStart,
		BaselineEnd:       res.Window.BaselineEnd,
		TotalLeakUSD:      res.TotalLoss(),
		NetRevenueUSD:     res.NetRevenue.Round(2),
		SignalsDetected:   report.SummaryCards.SignalsDetected,
		HighSeverityCount: report.SummaryCards.HighSeverityCount,
		Report:            body,
	}
	if _, err := s.store.InsertRun(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to persist run")
	}
}

func (s *Service) maybeAlert(ctx context.Context, tenantID string, runTS time.Time, res engine.Result, report scoring.Report) {
	if !s.alertsOn || s.notifier == nil || s.minLeakUSD.IsZero() {
		return
	}
	total := res.TotalLoss()
	if total.LessThan(s.minLeakUSD) {
		return
	}

	note := alerting.Notification{
		TenantID:          tenantID,
		RunTS:             runTS,
		TotalLeakUSD:      total,
		ThresholdUSD:      s.minLeakUSD,
		NetRevenueUSD:     res.NetRevenue.Round(2),
		HighSeverityCount: report.SummaryCards.HighSeverityCount,
		SignalsDetected:   report.SummaryCards.SignalsDetected,
		Channels:          s.channels,
	}
	if len(report.TopLeaks) > 0 {
		note.TopSignal = report.TopLeaks[0].SignalID
		note.TopSignalLossUSD = decimal.NewFromFloat(report.TopLeaks[0].LossUSD)
	}

	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to dispatch alert")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
