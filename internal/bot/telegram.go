// Package bot hosts the Telegram subscription commands. It owns subscriber
// registration; the notification engine only ever reads the registry.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"xsushi-ratio-tracker/internal/fetcher"
	"xsushi-ratio-tracker/internal/metrics"
	"xsushi-ratio-tracker/internal/notify"
	"xsushi-ratio-tracker/internal/storage"
)

// Options parameterise the bot.
type Options struct {
	Token       string
	PollTimeout time.Duration
}

// Bot wraps the telebot long poller with the subscribe/unsubscribe handlers.
type Bot struct {
	bot         *tele.Bot
	subscribers storage.SubscriberStore
	ratios      storage.RatioStore
	logger      zerolog.Logger
}

// New constructs the bot and registers its command handlers.
func New(opts Options, subscribers storage.SubscriberStore, ratios storage.RatioStore, logger zerolog.Logger) (*Bot, error) {
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}

	pref := tele.Settings{
		Token:  opts.Token,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
	}
	inner, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	b := &Bot{
		bot:         inner,
		subscribers: subscribers,
		ratios:      ratios,
		logger:      logger.With().Str("component", "bot").Logger(),
	}

	inner.Handle("/start", b.handleStart)
	inner.Handle("/stop", b.handleStop)
	return b, nil
}

// Telebot returns the underlying bot, shared with the notification sender.
func (b *Bot) Telebot() *tele.Bot {
	return b.bot
}

// Run starts long polling until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()

	b.logger.Info().Msg("telegram bot started")
	b.bot.Start()
	b.logger.Info().Msg("telegram bot stopped")
}

func (b *Bot) handleStart(c tele.Context) error {
	ctx := context.Background()
	chatID := c.Sender().ID

	if err := b.subscribers.AddSubscriber(ctx, chatID); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("subscribe failed")
		return c.Send("Something went wrong, please try again later.")
	}
	b.logger.Info().Int64("chat_id", chatID).Msg("subscriber added")
	b.refreshSubscriberGauge(ctx)

	points, err := b.ratios.ListRecent(ctx, 2)
	if err != nil {
		b.logger.Error().Err(err).Msg("load snapshot for welcome failed")
		points = nil
	}

	return c.Send(WelcomeMessage(points, time.Now().UTC()))
}

func (b *Bot) handleStop(c tele.Context) error {
	ctx := context.Background()
	chatID := c.Sender().ID

	if err := b.subscribers.RemoveSubscriber(ctx, chatID); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("unsubscribe failed")
		return c.Send("Something went wrong, please try again later.")
	}
	b.logger.Info().Int64("chat_id", chatID).Msg("subscriber removed")
	b.refreshSubscriberGauge(ctx)

	return c.Send("You've unsubscribed from xSushi ratio updates. Use /start to subscribe again.")
}

func (b *Bot) refreshSubscriberGauge(ctx context.Context) {
	count, err := b.subscribers.CountSubscribers(ctx)
	if err != nil {
		return
	}
	metrics.SubscribersActive.Set(float64(count))
}

// WelcomeMessage renders the /start reply from the latest (up to two) points:
// the newest supplies the ratio, the one before it the change percentage.
func WelcomeMessage(points []storage.RatioPoint, now time.Time) string {
	if len(points) == 0 {
		return "Welcome! No data yet, check back soon.\n\nTo unsubscribe, use /stop"
	}

	latest := points[0]
	var prior *decimal.Decimal
	if len(points) > 1 {
		p := points[1].Ratio
		prior = &p
	}

	changePct := notify.ChangePercent(latest.Ratio, prior)
	inverse := latest.Ratio
	if !latest.Ratio.IsZero() {
		inverse = decimal.NewFromInt(1).DivRound(latest.Ratio, fetcher.RatioPrecision)
	}

	builder := strings.Builder{}
	builder.WriteString("Welcome! You're subscribed to xSushi ratio updates.\n\n")
	builder.WriteString(fmt.Sprintf("Date: %s\n", now.Format("2006-01-02")))
	builder.WriteString(fmt.Sprintf("xSushi/Sushi = %s\n", inverse.StringFixed(fetcher.RatioPrecision)))
	builder.WriteString(fmt.Sprintf("Sushi/xSushi = %s\n", latest.Ratio.StringFixed(fetcher.RatioPrecision)))
	builder.WriteString(fmt.Sprintf("Last change date: %s\n", latest.ObservedAt.UTC().Format("2006-01-02 15:04")))
	builder.WriteString(fmt.Sprintf("Last change: %s%%\n", changePct.StringFixed(2)))
	builder.WriteString("\nTo unsubscribe, use /stop")
	return builder.String()
}
