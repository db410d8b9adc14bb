package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhopkins78/he-revenue-leaks/internal/app"
)

var (
	showTenant string
	showLimit  int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent evaluation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showTenant == "" {
			return fmt.Errorf("--tenant must be provided")
		}
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			TenantID: showTenant,
			Limit:    showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showTenant, "tenant", "", "Tenant id to inspect")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of runs to display")
}
