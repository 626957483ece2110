// Package enrich computes and caches the treasury valuation folded into
// change notifications. Enrichment is best-effort: it degrades to a zero
// value on failure and never blocks the notification path.
package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"xsushi-ratio-tracker/internal/fetcher"
	"xsushi-ratio-tracker/internal/metrics"
)

// Value is the derived treasury figure: the USD total across priced holdings
// and the balance of the wrapped-native-asset token.
type Value struct {
	TotalUSD       decimal.Decimal
	WrappedBalance decimal.Decimal
}

// Cache memoizes a single Value for a fixed time-to-live window. One slot for
// the whole process; cycles never overlap, so the mutex only guards against
// concurrent reads from the HTTP layer.
type Cache struct {
	fetcher       fetcher.TreasuryFetcher
	ttl           time.Duration
	wrappedSymbol string
	logger        zerolog.Logger
	now           func() time.Time

	mu        sync.Mutex
	value     Value
	fetchedAt time.Time
}

// NewCache constructs the treasury cache.
func NewCache(f fetcher.TreasuryFetcher, ttl time.Duration, wrappedSymbol string, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Cache{
		fetcher:       f,
		ttl:           ttl,
		wrappedSymbol: wrappedSymbol,
		logger:        logger.With().Str("component", "treasury_cache").Logger(),
		now:           time.Now,
	}
}

// Get returns the cached value while it is fresh, otherwise recomputes it from
// the holdings source. Failures yield a zero Value for this call only; the
// zero is not cached, so the next call retries the source.
func (c *Cache) Get(ctx context.Context) Value {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.fetchedAt.IsZero() && now.Sub(c.fetchedAt) < c.ttl {
		metrics.EnrichmentLookupsTotal.WithLabelValues("hit").Inc()
		return c.value
	}

	holdings, err := c.fetcher.FetchHoldings(ctx)
	if err != nil {
		metrics.EnrichmentLookupsTotal.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Msg("treasury fetch failed, using zero enrichment")
		return Value{}
	}

	metrics.EnrichmentLookupsTotal.WithLabelValues("miss").Inc()
	value := compute(holdings, c.wrappedSymbol)
	c.value = value
	c.fetchedAt = now
	return value
}

func compute(holdings []fetcher.TokenHolding, wrappedSymbol string) Value {
	total := decimal.Zero
	wrapped := decimal.Zero

	for _, holding := range holdings {
		balance := holding.Balance()
		if holding.PriceUSD != nil {
			total = total.Add(balance.Mul(*holding.PriceUSD))
		}
		if holding.Symbol == wrappedSymbol {
			wrapped = balance
		}
	}

	return Value{
		TotalUSD:       total.Round(2),
		WrappedBalance: wrapped.Round(4),
	}
}
