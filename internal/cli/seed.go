package cli

import (
	"github.com/spf13/cobra"

	"github.com/jhopkins78/he-revenue-leaks/internal/app"
)

var (
	seedTenant string
	seedOut    string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the deterministic demo dataset for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SeedOptions{
			TenantID: seedTenant,
			OutRoot:  seedOut,
		}
		return getApp().Seed(cmd.Context(), opts)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedTenant, "tenant", "demo", "Tenant id folder to write into")
	seedCmd.Flags().StringVar(&seedOut, "out", "", "Output root directory (defaults to app.data_root)")
}
