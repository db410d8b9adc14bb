package app

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/jhopkins78/he-revenue-leaks/internal/connector"
)

// Sync runs one incremental Stripe pull for a tenant and prints the result.
func (a *App) Sync(ctx context.Context, opts SyncOptions) error {
	stripe := a.newStripe(opts.TenantID)
	if !stripe.Configured() {
		return errors.New("connector.stripe.api_key not configured")
	}

	result, err := stripe.Sync(ctx, connector.SyncOptions{
		Entities:   opts.Entities,
		SinceEpoch: opts.SinceEpoch,
		PageLimit:  opts.PageLimit,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
