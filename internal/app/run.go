package app

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/jhopkins78/he-revenue-leaks/internal/dataset"
	"github.com/jhopkins78/he-revenue-leaks/internal/scoring"
	"github.com/jhopkins78/he-revenue-leaks/internal/service"
	"github.com/jhopkins78/he-revenue-leaks/internal/storage"
)

// RunOnce evaluates one tenant immediately and prints the dashboard payload.
func (a *App) RunOnce(ctx context.Context, opts RunOptions) error {
	var runStore storage.RunStore
	if opts.Persist {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			a.Logger.Warn().Msg("database.dsn not configured; run will not be persisted")
		} else {
			runStore = store
		}
		if closeStore != nil {
			defer closeStore()
		}
	}

	paths := dataset.Paths{
		Orders:       opts.OrdersPath,
		OrderLines:   opts.OrderLinesPath,
		Refunds:      opts.RefundsPath,
		Payments:     opts.PaymentsPath,
		Tickets:      opts.TicketsPath,
		CouponUsages: opts.DiscountsPath,
	}
	if paths.Orders == "" {
		paths = dataset.DefaultPaths(a.Config.App.DataRoot, opts.TenantID)
	}

	svc := service.New(a.Config, nil, runStore, a.newNotifier(), a.Logger)

	out, err := svc.RunTenant(ctx, opts.TenantID, paths)
	if err != nil {
		return err
	}

	payload := struct {
		RunID     string           `json:"runId"`
		TenantID  string           `json:"tenantId"`
		Template  string           `json:"template"`
		RunTS     time.Time        `json:"runTs"`
		Dashboard scoring.Report   `json:"dashboard"`
		Deltas    scoring.DeltaSet `json:"deltas"`
	}{
		RunID:     out.RunID.String(),
		TenantID:  opts.TenantID,
		Template:  scoring.TemplateName,
		RunTS:     out.RunTS,
		Dashboard: out.Report,
		Deltas:    out.Deltas,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
