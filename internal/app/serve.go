package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jhopkins78/he-revenue-leaks/internal/dataset"
	"github.com/jhopkins78/he-revenue-leaks/internal/scheduler"
	"github.com/jhopkins78/he-revenue-leaks/internal/server"
	"github.com/jhopkins78/he-revenue-leaks/internal/service"
	"github.com/jhopkins78/he-revenue-leaks/internal/storage"
)

type runServiceAdapter struct {
	svc *service.Service
}

func (r runServiceAdapter) RunLeaks(ctx context.Context, tenantID string, paths dataset.Paths) (server.RunOutcome, error) {
	out, err := r.svc.RunTenant(ctx, tenantID, paths)
	if err != nil {
		return server.RunOutcome{}, err
	}
	return server.RunOutcome{
		RunID:  out.RunID,
		RunTS:  out.RunTS,
		Report: out.Report,
		Deltas: out.Deltas,
	}, nil
}

var _ server.RunService = runServiceAdapter{}

// Serve runs the HTTP API and, when enabled, the scheduled evaluation loop.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; run history disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	// The service skips persistence on a nil store; the HTTP layer instead
	// wants a concrete store that reports itself unconfigured.
	var runStore storage.RunStore
	apiStore := storage.RunStore(storage.NewStore(nil))
	if store != nil {
		runStore = store
		apiStore = store
	}

	var sched *scheduler.Scheduler
	if a.Config.Scheduler.Enabled {
		if len(a.Config.Scheduler.Tenants) == 0 {
			a.Logger.Warn().Msg("scheduler.enabled set but scheduler.tenants is empty; scheduled runs disabled")
		} else {
			sched = scheduler.New(scheduler.Options{
				Interval:     a.Config.Scheduler.Interval,
				AlignToStart: a.Config.Scheduler.AlignToBucket,
				StartupDelay: a.Config.Scheduler.StartupDelay,
			}, a.Logger)
		}
	}

	svc := service.New(a.Config, sched, runStore, a.newNotifier(), a.Logger)

	api := server.New(a.Config, a.Logger, apiStore, runServiceAdapter{svc: svc})
	httpSrv := &http.Server{
		Addr:         a.Config.Server.ListenAddr,
		Handler:      api.Routes(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", httpSrv.Addr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if sched != nil {
		go func() {
			if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Msg("scheduled evaluation loop terminated with error")
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	a.Logger.Info().Msg("server stopped")
	return nil
}
