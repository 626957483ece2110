// Package service orchestrates the detection cycle: fetch the current ratio,
// decide whether it is a qualifying change, fold it into the daily series,
// and fan the notification out to subscribers.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"xsushi-ratio-tracker/internal/enrich"
	"xsushi-ratio-tracker/internal/fetcher"
	"xsushi-ratio-tracker/internal/metrics"
	"xsushi-ratio-tracker/internal/notify"
	"xsushi-ratio-tracker/internal/scheduler"
	"xsushi-ratio-tracker/internal/storage"
)

// changeThreshold is one unit in the last tracked decimal digit. The source
// exhibits sub-threshold jitter, so only moves of at least this size count as
// a change. The comparison is inclusive: a move of exactly one quantization
// unit qualifies.
var changeThreshold = decimal.New(1, -fetcher.RatioPrecision)

// ChangeDecision is the outcome of comparing a fresh sample against the most
// recent persisted value.
type ChangeDecision struct {
	Changed bool
	Prior   *decimal.Decimal
}

// Dispatcher fans one composed message out to all subscribers.
type Dispatcher interface {
	Dispatch(ctx context.Context, message string) (notify.Report, error)
}

// Enricher supplies the best-effort treasury value for notifications.
type Enricher interface {
	Get(ctx context.Context) enrich.Value
}

// Service owns the detection cycle. Construct at process start, tear down at
// shutdown; no ambient singletons.
type Service struct {
	sched      *scheduler.Scheduler
	primary    fetcher.RatioFetcher
	fallback   fetcher.RatioFetcher
	store      storage.RatioStore
	enrichment Enricher
	dispatcher Dispatcher
	logger     zerolog.Logger
	now        func() time.Time
}

// New constructs the detection service. fallback and dispatcher may be nil.
func New(sched *scheduler.Scheduler, primary, fallback fetcher.RatioFetcher, store storage.RatioStore, enrichment Enricher, dispatcher Dispatcher, logger zerolog.Logger) *Service {
	return &Service{
		sched:      sched,
		primary:    primary,
		fallback:   fallback,
		store:      store,
		enrichment: enrichment,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "service").Logger(),
		now:        time.Now,
	}
}

// Run executes one silent cycle immediately, then hands control to the
// scheduler. The startup cycle records a pending change but suppresses
// dispatch, so a restart never re-notifies subscribers.
func (s *Service) Run(ctx context.Context) error {
	if s.sched == nil {
		return fmt.Errorf("scheduler not configured")
	}

	if err := s.RunCycle(ctx, true); err != nil {
		s.logger.Error().Err(err).Msg("startup cycle failed")
	}

	return s.sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		return s.RunCycle(ctx, false)
	})
}

// RunCycle 执行一次完整的检测周期。silent 为 true 时只落库、不通知。
func (s *Service) RunCycle(ctx context.Context, silent bool) error {
	ratio, err := s.fetchRatio(ctx)
	if err != nil {
		// 抓取失败静默结束本轮，下一个周期独立重试。
		metrics.CyclesTotal.WithLabelValues("fetch_failed").Inc()
		s.logger.Error().Err(err).Msg("ratio fetch failed, skipping cycle")
		return nil
	}

	decision, err := s.detect(ctx, ratio)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("store_failed").Inc()
		return fmt.Errorf("load prior value: %w", err)
	}

	if !decision.Changed {
		metrics.CyclesTotal.WithLabelValues("unchanged").Inc()
		s.logger.Info().Str("ratio", ratio.String()).Msg("ratio unchanged, skipped")
		return nil
	}

	observedAt := s.now().UTC()
	outcome, err := s.store.UpsertDay(ctx, storage.RatioPoint{Ratio: ratio, ObservedAt: observedAt})
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("store_failed").Inc()
		return fmt.Errorf("upsert daily row: %w", err)
	}

	metrics.ChangesDetectedTotal.Inc()
	metrics.WritesTotal.WithLabelValues(string(outcome)).Inc()
	metrics.CurrentRatio.Set(ratio.InexactFloat64())

	event := s.logger.Info().Str("ratio", ratio.String()).Str("outcome", string(outcome))
	if decision.Prior != nil {
		event = event.Str("prior", decision.Prior.String())
	}
	event.Msg("qualifying change recorded")

	if silent {
		metrics.CyclesTotal.WithLabelValues("silent").Inc()
		s.logger.Info().Msg("startup cycle, notification suppressed")
		return nil
	}

	return s.notifyChange(ctx, ratio, decision.Prior, observedAt)
}

func (s *Service) notifyChange(ctx context.Context, ratio decimal.Decimal, prior *decimal.Decimal, observedAt time.Time) error {
	var treasury enrich.Value
	if s.enrichment != nil {
		treasury = s.enrichment.Get(ctx)
	}

	message, err := notify.Compose(ratio, prior, treasury, observedAt)
	if err != nil {
		// 落库已经完成，组装失败只跳过本轮通知。
		metrics.CyclesTotal.WithLabelValues("compose_failed").Inc()
		s.logger.Error().Err(err).Msg("compose failed, notification skipped")
		return nil
	}

	if s.dispatcher == nil {
		metrics.CyclesTotal.WithLabelValues("notified").Inc()
		s.logger.Warn().Msg("no dispatcher configured, notification skipped")
		return nil
	}

	report, err := s.dispatcher.Dispatch(ctx, message)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("dispatch_interrupted").Inc()
		return fmt.Errorf("dispatch notifications: %w", err)
	}

	metrics.CyclesTotal.WithLabelValues("notified").Inc()
	s.logger.Info().Int("delivered", report.Delivered).Int("failed", report.Failed).Msg("notifications dispatched")
	return nil
}

// detect compares a fresh sample against the most recent persisted value,
// independent of calendar day.
func (s *Service) detect(ctx context.Context, ratio decimal.Decimal) (ChangeDecision, error) {
	latest, err := s.store.LatestRatio(ctx)
	if err != nil {
		return ChangeDecision{}, err
	}

	if latest == nil {
		return ChangeDecision{Changed: true}, nil
	}

	prior := latest.Ratio
	changed := ratio.Sub(prior).Abs().GreaterThanOrEqual(changeThreshold)
	return ChangeDecision{Changed: changed, Prior: &prior}, nil
}

func (s *Service) fetchRatio(ctx context.Context) (decimal.Decimal, error) {
	ratio, err := s.primary.FetchRatio(ctx)
	if err == nil {
		return ratio, nil
	}

	if s.fallback == nil {
		return decimal.Decimal{}, err
	}

	s.logger.Warn().Err(err).Msg("primary source failed, trying on-chain fallback")
	ratio, fallbackErr := s.fallback.FetchRatio(ctx)
	if fallbackErr != nil {
		return decimal.Decimal{}, fmt.Errorf("primary: %v; fallback: %w", err, fallbackErr)
	}
	return ratio, nil
}
