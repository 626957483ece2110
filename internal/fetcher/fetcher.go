package fetcher

import (
	"context"

	"github.com/shopspring/decimal"
)

// RatioPrecision is the fixed decimal precision of the tracked ratio.
// All comparisons and derived quantities use this precision.
const RatioPrecision = 4

// RatioFetcher retrieves the current xSushi↔Sushi exchange ratio,
// quantized to RatioPrecision digits.
type RatioFetcher interface {
	FetchRatio(ctx context.Context) (decimal.Decimal, error)
}

// TokenHolding is one treasury position as reported by the holdings endpoint.
type TokenHolding struct {
	Symbol     string
	RawBalance decimal.Decimal
	Decimals   int32
	PriceUSD   *decimal.Decimal
}

// Balance converts the raw integer balance using the token's declared precision.
func (h TokenHolding) Balance() decimal.Decimal {
	return h.RawBalance.Shift(-h.Decimals)
}

// TreasuryFetcher retrieves the current treasury token holdings.
type TreasuryFetcher interface {
	FetchHoldings(ctx context.Context) ([]TokenHolding, error)
}
