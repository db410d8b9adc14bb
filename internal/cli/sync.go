package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhopkins78/he-revenue-leaks/internal/app"
)

var (
	syncTenant    string
	syncEntities  []string
	syncSince     int64
	syncPageLimit int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull Stripe entities incrementally for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncTenant == "" {
			return fmt.Errorf("--tenant must be provided")
		}
		if syncPageLimit < 1 || syncPageLimit > 100 {
			return fmt.Errorf("--page-limit must be between 1 and 100")
		}

		opts := app.SyncOptions{
			TenantID:  syncTenant,
			Entities:  syncEntities,
			PageLimit: syncPageLimit,
		}
		if cmd.Flags().Changed("since") {
			opts.SinceEpoch = &syncSince
		}

		return getApp().Sync(cmd.Context(), opts)
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncTenant, "tenant", "", "Tenant id to sync")
	syncCmd.Flags().StringSliceVar(&syncEntities, "entities", nil, "Entities to sync (defaults to charges,customers,invoices,refunds)")
	syncCmd.Flags().Int64Var(&syncSince, "since", 0, "Override the stored cursor with this epoch second")
	syncCmd.Flags().IntVar(&syncPageLimit, "page-limit", 100, "Stripe page size (1-100)")
}
