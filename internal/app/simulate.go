package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"xsushi-ratio-tracker/internal/bot"
	"xsushi-ratio-tracker/internal/notify"
)

// SimulateNotify 用给定的比率值走一遍真实的组装加派发流程，不写库。
func (a *App) SimulateNotify(ctx context.Context, ratio decimal.Decimal, prior *decimal.Decimal) error {
	if !a.Config.Telegram.Enabled {
		return errors.New("telegram 未启用")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	tgBot, err := bot.New(bot.Options{
		Token:       a.Config.Telegram.BotToken,
		PollTimeout: a.Config.Telegram.PollTimeout,
	}, store, store, a.Logger)
	if err != nil {
		return err
	}

	enrichment := a.newEnrichment()
	treasury := enrichment.Get(ctx)

	message, err := notify.Compose(ratio, prior, treasury, time.Now().UTC())
	if err != nil {
		return err
	}

	sender := notify.NewTelegramSender(tgBot.Telebot(), a.Config.Telegram.DeliveryTimeout, a.Logger)
	limiter := notify.NewRateLimiter(1, a.Config.Telegram.SendInterval)
	dispatcher := notify.NewDispatcher(store, sender, limiter, a.Logger)

	report, err := dispatcher.Dispatch(ctx, message)
	if err != nil {
		return err
	}

	a.Logger.Info().Int("delivered", report.Delivered).Int("failed", report.Failed).Msg("simulated notification dispatched")
	return nil
}
