package app

import (
	"context"
	"errors"
	"time"
)

// Prune 清理早于截止时间的历史运行。
func (a *App) Prune(ctx context.Context, opts PruneOptions) error {
	if opts.Before.IsZero() {
		return errors.New("清理需要 --before 截止时间")
	}
	if opts.Before.After(time.Now().UTC()) {
		a.Logger.Warn().Time("before", opts.Before).Msg("截止时间在未来，将删除全部历史运行")
	}

	if opts.DryRun {
		a.Logger.Warn().Msg("清理 dry-run：不会删除数据")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn 未配置，无法清理")
	}
	if closeStore != nil {
		defer closeStore()
	}

	total, err := store.CountRuns(ctx, opts.TenantID)
	if err != nil {
		return err
	}

	if opts.DryRun {
		a.Logger.Info().Int64("total", total).Time("before", opts.Before).Msg("dry-run 完成，未删除任何记录")
		return nil
	}

	if err := store.DeleteRunsBefore(ctx, opts.TenantID, opts.Before.UTC()); err != nil {
		return err
	}

	remaining, err := store.CountRuns(ctx, opts.TenantID)
	if err != nil {
		return err
	}

	a.Logger.Info().Int64("deleted", total-remaining).Int64("remaining", remaining).Msg("清理完成")
	return nil
}
