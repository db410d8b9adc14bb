package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhopkins78/he-revenue-leaks/internal/app"
)

var (
	pruneTenant string
	pruneBefore string
	pruneDryRun bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete stored runs older than a cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pruneTenant == "" || pruneBefore == "" {
			return fmt.Errorf("--tenant and --before must be provided")
		}

		before, err := time.Parse(time.RFC3339, pruneBefore)
		if err != nil {
			return fmt.Errorf("invalid --before value: %w", err)
		}

		opts := app.PruneOptions{
			TenantID: pruneTenant,
			Before:   before,
			DryRun:   pruneDryRun,
		}

		return getApp().Prune(cmd.Context(), opts)
	},
}

func init() {
	pruneCmd.Flags().StringVar(&pruneTenant, "tenant", "", "Tenant id to prune")
	pruneCmd.Flags().StringVar(&pruneBefore, "before", "", "Delete runs with run_ts earlier than this (RFC3339)")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "Count matching runs without deleting")
}
