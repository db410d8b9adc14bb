package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhopkins78/he-revenue-leaks/internal/app"
)

var (
	runTenant     string
	runOrders     string
	runOrderLines string
	runRefunds    string
	runPayments   string
	runTickets    string
	runDiscounts  string
	runPersist    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate one tenant's leak signals and print the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runTenant == "" {
			return fmt.Errorf("--tenant must be provided")
		}

		opts := app.RunOptions{
			TenantID:       runTenant,
			OrdersPath:     runOrders,
			OrderLinesPath: runOrderLines,
			RefundsPath:    runRefunds,
			PaymentsPath:   runPayments,
			TicketsPath:    runTickets,
			DiscountsPath:  runDiscounts,
			Persist:        runPersist,
		}

		return getApp().RunOnce(cmd.Context(), opts)
	},
}

func init() {
	runCmd.Flags().StringVar(&runTenant, "tenant", "", "Tenant id to evaluate")
	runCmd.Flags().StringVar(&runOrders, "orders", "", "Path to the orders fact table (defaults to <data_root>/<tenant>/fact_orders.*)")
	runCmd.Flags().StringVar(&runOrderLines, "order-lines", "", "Path to the order lines fact table")
	runCmd.Flags().StringVar(&runRefunds, "refunds", "", "Path to the refunds fact table")
	runCmd.Flags().StringVar(&runPayments, "payments", "", "Path to the payments fact table")
	runCmd.Flags().StringVar(&runTickets, "tickets", "", "Path to the support tickets fact table")
	runCmd.Flags().StringVar(&runDiscounts, "discounts", "", "Path to the coupon usage fact table")
	runCmd.Flags().BoolVar(&runPersist, "persist", true, "Persist the run to history when storage is configured")
}
