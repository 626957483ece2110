package notify

import (
	"context"

	"github.com/rs/zerolog"

	"xsushi-ratio-tracker/internal/metrics"
	"xsushi-ratio-tracker/internal/storage"
)

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Limiter gates the pace of consecutive deliveries.
type Limiter interface {
	Wait(ctx context.Context) error
}

// SubscriberSource lists the current subscriber identifiers. Read-only from
// the dispatcher's perspective.
type SubscriberSource interface {
	ListSubscribers(ctx context.Context) ([]storage.Subscriber, error)
}

// Report summarises one fan-out batch.
type Report struct {
	Delivered int
	Failed    int
}

// Dispatcher fans a composed message out to every subscriber, sequentially
// and rate limited. One subscriber's failure never blocks the others; there
// is no retry and no dead letter.
type Dispatcher struct {
	subscribers SubscriberSource
	sender      Sender
	limiter     Limiter
	logger      zerolog.Logger
}

// NewDispatcher constructs the fan-out dispatcher.
func NewDispatcher(subscribers SubscriberSource, sender Sender, limiter Limiter, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		subscribers: subscribers,
		sender:      sender,
		limiter:     limiter,
		logger:      logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch snapshots the subscriber list and attempts delivery to each entry.
// Registry changes during an in-flight batch do not affect that batch. On
// context cancellation the current recipient finishes and the loop stops.
func (d *Dispatcher) Dispatch(ctx context.Context, message string) (Report, error) {
	snapshot, err := d.subscribers.ListSubscribers(ctx)
	if err != nil {
		return Report{}, err
	}

	report := Report{}
	for _, sub := range snapshot {
		if err := d.limiter.Wait(ctx); err != nil {
			d.logger.Warn().Int("delivered", report.Delivered).Int("failed", report.Failed).
				Msg("fan-out interrupted by shutdown")
			return report, err
		}

		if err := d.sender.Send(ctx, sub.ChatID, message); err != nil {
			report.Failed++
			metrics.NotificationsFailedTotal.Inc()
			d.logger.Error().Err(err).Int64("chat_id", sub.ChatID).Msg("发送失败, 继续下一个订阅者")
			continue
		}
		report.Delivered++
		metrics.NotificationsSentTotal.Inc()
	}

	d.logger.Info().Int("subscribers", len(snapshot)).
		Int("delivered", report.Delivered).
		Int("failed", report.Failed).
		Msg("fan-out complete")
	return report, nil
}
