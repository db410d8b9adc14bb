package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RunRecord is one persisted evaluation run for a tenant.
type RunRecord struct {
	ID                int64
	RunID             uuid.UUID
	TenantID          string
	RunTS             time.Time
	WindowStart       time.Time
	WindowEnd         time.Time
	BaselineStart     time.Time
	BaselineEnd       time.Time
	TotalLeakUSD      decimal.Decimal
	NetRevenueUSD     decimal.Decimal
	SignalsDetected   int
	HighSeverityCount int
	Report            json.RawMessage
	CreatedAt         time.Time
}

// TrendPoint is one compact chart sample derived from run history.
type TrendPoint struct {
	RunTS             time.Time
	TotalLeakUSD      decimal.Decimal
	HighSeverityCount int
	SignalsDetected   int
}
