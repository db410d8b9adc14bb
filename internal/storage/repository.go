package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertRunSQL = `INSERT INTO leak_runs (
        run_id,
        tenant_id,
        run_ts,
        window_start,
        window_end,
        baseline_start,
        baseline_end,
        total_leak_usd,
        net_revenue_usd,
        signals_detected,
        high_severity_count,
        report
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
    )
    RETURNING id, created_at;`

	listRecentRunsSQL = `SELECT
        id,
        run_id,
        tenant_id,
        run_ts,
        window_start,
        window_end,
        baseline_start,
        baseline_end,
        total_leak_usd,
        net_revenue_usd,
        signals_detected,
        high_severity_count,
        report,
        created_at
    FROM leak_runs
    WHERE tenant_id = $1
    ORDER BY run_ts DESC
    LIMIT $2;`

	trendPointsSQL = `SELECT
        run_ts,
        total_leak_usd,
        high_severity_count,
        signals_detected
    FROM leak_runs
    WHERE tenant_id = $1
    ORDER BY run_ts DESC
    LIMIT $2;`

	trendPointsBetweenSQL = `SELECT
        run_ts,
        total_leak_usd,
        high_severity_count,
        signals_detected
    FROM leak_runs
    WHERE tenant_id = $1 AND run_ts >= $2 AND run_ts < $3
    ORDER BY run_ts ASC;`

	countRunsSQL = `SELECT COUNT(*) FROM leak_runs WHERE tenant_id = $1;`

	deleteRunsBeforeSQL = `DELETE FROM leak_runs WHERE tenant_id = $1 AND run_ts < $2;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// RunStore defines operations for run history persistence.
type RunStore interface {
	InsertRun(ctx context.Context, rec RunRecord) (RunRecord, error)
	ListRecentRuns(ctx context.Context, tenantID string, limit int) ([]RunRecord, error)
	TrendPoints(ctx context.Context, tenantID string, limit int) ([]TrendPoint, error)
	CountRuns(ctx context.Context, tenantID string) (int64, error)
	DeleteRunsBefore(ctx context.Context, tenantID string, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to persisted runs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertRun persists one evaluation run and returns it with its assigned id.
func (s *Store) InsertRun(ctx context.Context, rec RunRecord) (RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return RunRecord{}, err
	}

	row := pool.QueryRow(ctx, insertRunSQL,
		rec.RunID.String(),
		rec.TenantID,
		rec.RunTS,
		rec.WindowStart,
		rec.WindowEnd,
		rec.BaselineStart,
		rec.BaselineEnd,
		rec.TotalLeakUSD.String(),
		rec.NetRevenueUSD.String(),
		rec.SignalsDetected,
		rec.HighSeverityCount,
		[]byte(rec.Report),
	)

	if scanErr := row.Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", scanErr)
	}
	return rec, nil
}

// ListRecentRuns lists a tenant's runs ordered by descending run timestamp.
func (s *Store) ListRecentRuns(ctx context.Context, tenantID string, limit int) ([]RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, tenantID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanRunRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

// TrendPoints returns up to limit chart samples for a tenant, oldest first.
func (s *Store) TrendPoints(ctx context.Context, tenantID string, limit int) ([]TrendPoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, trendPointsSQL, tenantID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("trend points: %w", queryErr)
	}
	defer rows.Close()

	points := make([]TrendPoint, 0, limit)
	for rows.Next() {
		var p TrendPoint
		var totalStr string
		if scanErr := rows.Scan(&p.RunTS, &totalStr, &p.HighSeverityCount, &p.SignalsDetected); scanErr != nil {
			return nil, scanErr
		}
		var convErr error
		p.TotalLeakUSD, convErr = decimal.NewFromString(totalStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse total leak: %w", convErr)
		}
		points = append(points, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	// query is newest-first so the limit trims old history; charts read oldest-first
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// TrendPointsBetween returns chart samples inside [from, to), oldest first.
func (s *Store) TrendPointsBetween(ctx context.Context, tenantID string, from, to time.Time) ([]TrendPoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, trendPointsBetweenSQL, tenantID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("trend points between: %w", queryErr)
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		var totalStr string
		if scanErr := rows.Scan(&p.RunTS, &totalStr, &p.HighSeverityCount, &p.SignalsDetected); scanErr != nil {
			return nil, scanErr
		}
		var convErr error
		p.TotalLeakUSD, convErr = decimal.NewFromString(totalStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse total leak: %w", convErr)
		}
		points = append(points, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return points, nil
}

// CountRuns counts a tenant's stored runs.
func (s *Store) CountRuns(ctx context.Context, tenantID string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countRunsSQL, tenantID).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count runs: %w", scanErr)
	}
	return count, nil
}

// DeleteRunsBefore deletes a tenant's runs older than the cutoff.
func (s *Store) DeleteRunsBefore(ctx context.Context, tenantID string, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteRunsBeforeSQL, tenantID, olderThan); execErr != nil {
		return fmt.Errorf("delete runs before: %w", execErr)
	}
	return nil
}

func scanRunRecord(rows pgx.Rows) (RunRecord, error) {
	var (
		rec      RunRecord
		runIDStr string
		totalStr string
		netStr   string
		report   json.RawMessage
	)

	if err := rows.Scan(
		&rec.ID,
		&runIDStr,
		&rec.TenantID,
		&rec.RunTS,
		&rec.WindowStart,
		&rec.WindowEnd,
		&rec.BaselineStart,
		&rec.BaselineEnd,
		&totalStr,
		&netStr,
		&rec.SignalsDetected,
		&rec.HighSeverityCount,
		&report,
		&rec.CreatedAt,
	); err != nil {
		return RunRecord{}, err
	}

	runID, err := uuid.Parse(runIDStr)
	if err != nil {
		return RunRecord{}, fmt.Errorf("parse run id: %w", err)
	}
	rec.RunID = runID

	rec.TotalLeakUSD, err = decimal.NewFromString(totalStr)
	if err != nil {
		return RunRecord{}, fmt.Errorf("parse total leak: %w", err)
	}
	rec.NetRevenueUSD, err = decimal.NewFromString(netStr)
	if err != nil {
		return RunRecord{}, fmt.Errorf("parse net revenue: %w", err)
	}
	rec.Report = report

	return rec, nil
}
