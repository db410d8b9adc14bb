package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhopkins78/he-revenue-leaks/internal/alerting"
	"github.com/jhopkins78/he-revenue-leaks/internal/engine"
	"github.com/jhopkins78/he-revenue-leaks/internal/scoring"
)

// SimulateAlert 以内置演示数据集执行一次真实评估并触发告警流程。
func (a *App) SimulateAlert(ctx context.Context, tenantID string) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	res := engine.Evaluate(demoDataset(), engine.Params{
		WindowDays:   a.Config.Engine.WindowDays,
		BaselineDays: a.Config.Engine.BaselineDays,
	})
	report := scoring.BuildReport(res)

	note := alerting.Notification{
		TenantID:          tenantID,
		RunTS:             time.Now().UTC(),
		TotalLeakUSD:      res.TotalLoss(),
		ThresholdUSD:      decimal.NewFromFloat(a.Config.Alerting.MinTotalLeakUSD),
		NetRevenueUSD:     res.NetRevenue.Round(2),
		HighSeverityCount: report.SummaryCards.HighSeverityCount,
		SignalsDetected:   report.SummaryCards.SignalsDetected,
		Channels:          a.Config.Alerting.Channels,
		AdditionalMsg:     "Simulated run (demo dataset)",
	}
	if len(report.TopLeaks) > 0 {
		note.TopSignal = report.TopLeaks[0].SignalID
		note.TopSignalLossUSD = decimal.NewFromFloat(report.TopLeaks[0].LossUSD)
	}

	return notifier.Notify(ctx, note)
}
