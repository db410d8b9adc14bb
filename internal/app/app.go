package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhopkins78/he-revenue-leaks/internal/alerting"
	"github.com/jhopkins78/he-revenue-leaks/internal/config"
	"github.com/jhopkins78/he-revenue-leaks/internal/connector"
	"github.com/jhopkins78/he-revenue-leaks/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newStripe(tenantID string) *connector.Stripe {
	sc := a.Config.Connector.Stripe
	return connector.NewStripe(connector.StripeOptions{
		TenantID:       tenantID,
		APIKey:         sc.APIKey,
		BaseURL:        sc.BaseURL,
		Timeout:        sc.RequestTimeout,
		PageLimit:      sc.PageLimit,
		UserAgent:      sc.UserAgent,
		StateRoot:      sc.StateRoot,
		RawRoot:        sc.RawRoot,
		NormalizedRoot: sc.NormalizedRoot,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// RunOptions configure a one-off evaluation run.
type RunOptions struct {
	TenantID       string
	OrdersPath     string
	OrderLinesPath string
	RefundsPath    string
	PaymentsPath   string
	TicketsPath    string
	DiscountsPath  string
	Persist        bool
}

// ExportOptions hold parameters for exporting run history.
type ExportOptions struct {
	TenantID  string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	TenantID string
	Limit    int
}

// PruneOptions configure the run history retention job.
type PruneOptions struct {
	TenantID string
	Before   time.Time
	DryRun   bool
}

// SeedOptions configure the demo dataset writer.
type SeedOptions struct {
	TenantID string
	OutRoot  string
}

// SyncOptions configure a one-off connector sync.
type SyncOptions struct {
	TenantID   string
	Entities   []string
	SinceEpoch *int64
	PageLimit  int
}
