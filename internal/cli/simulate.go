package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

var (
	simulateTenant string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "以演示数据集模拟一次泄漏评估并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(simulateTenant) == "" {
			return errors.New("--tenant 不能为空")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateTenant)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateTenant, "tenant", "demo", "告警文案中使用的租户标识")
}
