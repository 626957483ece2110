package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"xsushi-ratio-tracker/internal/bot"
	"xsushi-ratio-tracker/internal/config"
	"xsushi-ratio-tracker/internal/enrich"
	"xsushi-ratio-tracker/internal/fetcher"
	"xsushi-ratio-tracker/internal/httpapi"
	"xsushi-ratio-tracker/internal/metrics"
	"xsushi-ratio-tracker/internal/notify"
	"xsushi-ratio-tracker/internal/scheduler"
	"xsushi-ratio-tracker/internal/service"
	"xsushi-ratio-tracker/internal/storage"
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

func (a *App) newFetchers() (fetcher.RatioFetcher, fetcher.RatioFetcher) {
	primary := fetcher.NewGraph(fetcher.GraphOptions{
		URL:       a.Config.Sushi.GraphQLURL,
		Timeout:   a.Config.Sushi.RequestTimeout,
		UserAgent: a.Config.Sushi.UserAgent,
	}, a.Logger)

	var fallback fetcher.RatioFetcher
	if a.Config.Ethereum.RPCURL != "" {
		fallback = fetcher.NewBar(fetcher.BarOptions{
			RPCURL:       a.Config.Ethereum.RPCURL,
			BarAddress:   a.Config.Ethereum.BarAddress,
			SushiAddress: a.Config.Ethereum.SushiAddress,
			Timeout:      a.Config.Ethereum.RequestTimeout,
		}, a.Logger)
	}

	return primary, fallback
}

func (a *App) newEnrichment() *enrich.Cache {
	treasury := fetcher.NewTreasury(fetcher.TreasuryOptions{
		URL:     a.Config.Treasury.APIURL,
		Timeout: a.Config.Treasury.RequestTimeout,
	}, a.Logger)
	return enrich.NewCache(treasury, a.Config.Treasury.CacheTTL, a.Config.Treasury.WrappedSymbol, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn is required")
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

// Run executes the long-running tracking service with its Telegram bot and
// HTTP surface.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if count, err := store.CountSubscribers(ctx); err == nil {
		metrics.SubscribersActive.Set(float64(count))
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToHour:  a.Config.Scheduler.AlignToHour,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	primary, fallback := a.newFetchers()
	enrichment := a.newEnrichment()

	var dispatcher service.Dispatcher
	if a.Config.Telegram.Enabled {
		tgBot, botErr := bot.New(bot.Options{
			Token:       a.Config.Telegram.BotToken,
			PollTimeout: a.Config.Telegram.PollTimeout,
		}, store, store, a.Logger)
		if botErr != nil {
			return botErr
		}

		sender := notify.NewTelegramSender(tgBot.Telebot(), a.Config.Telegram.DeliveryTimeout, a.Logger)
		limiter := notify.NewRateLimiter(1, a.Config.Telegram.SendInterval)
		dispatcher = notify.NewDispatcher(store, sender, limiter, a.Logger)

		go tgBot.Run(ctx)
	} else {
		a.Logger.Warn().Msg("telegram disabled; changes will be recorded without notification")
	}

	if a.Config.HTTP.Enabled {
		srv := httpapi.New(a.Config.HTTP, store, store, a.Logger)
		go func() {
			if err := srv.Run(ctx); err != nil {
				a.Logger.Error().Err(err).Msg("http server failed")
				cancel()
			}
		}()
	}

	svc := service.New(sched, primary, fallback, store, enrichment, dispatcher, a.Logger)

	a.Logger.Info().Msg("starting ratio tracking service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("ratio tracking service stopped")
	return nil
}

// ExportOptions hold parameters for exporting the daily series.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
