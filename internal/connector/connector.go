// Package connector provisions merchant transaction data from upstream SaaS
// APIs into the tenant's raw and normalized artifact directories.
package connector

import "time"

// Spec describes one supported upstream connector.
type Spec struct {
	Name                string   `json:"name"`
	AuthMode            string   `json:"auth_mode"`
	Entities            []string `json:"entities"`
	SupportsIncremental bool     `json:"supports_incremental"`
}

var registry = map[string]Spec{
	"quickbooks": {
		Name:                "quickbooks",
		AuthMode:            "oauth2",
		Entities:            []string{"invoices", "customers", "payments"},
		SupportsIncremental: true,
	},
	"shopify": {
		Name:                "shopify",
		AuthMode:            "oauth2",
		Entities:            []string{"orders", "customers", "refunds", "products"},
		SupportsIncremental: true,
	},
	"hubspot": {
		Name:                "hubspot",
		AuthMode:            "oauth2",
		Entities:            []string{"contacts", "companies", "deals", "tickets"},
		SupportsIncremental: true,
	},
	"stripe": {
		Name:                "stripe",
		AuthMode:            "api_key",
		Entities:            []string{"charges", "customers", "invoices", "refunds", "disputes", "payment_intents", "balance_transactions"},
		SupportsIncremental: true,
	},
}

// Lookup returns the spec for a connector name.
func Lookup(name string) (Spec, bool) {
	spec, ok := registry[name]
	return spec, ok
}

// Names lists the registered connector names.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}

// EntityDetail summarises one entity's sync outcome.
type EntityDetail struct {
	Records   int   `json:"records"`
	FromEpoch int64 `json:"from_epoch"`
	ToEpoch   int64 `json:"to_epoch"`
}

// Result summarises one sync run.
type Result struct {
	Connector     string                  `json:"connector"`
	Status        string                  `json:"status"`
	RecordsSynced int                     `json:"records_synced"`
	StartedAt     time.Time               `json:"started_at"`
	FinishedAt    time.Time               `json:"finished_at"`
	TenantID      string                  `json:"tenant_id"`
	CursorPath    string                  `json:"cursor_path"`
	Entities      map[string]EntityDetail `json:"entities"`
}

// Health is the persisted per-tenant connector health snapshot.
type Health struct {
	Name       string  `json:"name"`
	TenantID   string  `json:"tenant_id"`
	Status     string  `json:"status"`
	Configured bool    `json:"configured"`
	LastRunTS  string  `json:"last_run_ts"`
	LastError  *string `json:"last_error"`
}
