package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TreasuryOptions parameterise the treasury holdings fetcher.
type TreasuryOptions struct {
	URL     string
	Timeout time.Duration
}

// Treasury fetches the token holdings of the treasury wallet.
type Treasury struct {
	opts   TreasuryOptions
	logger zerolog.Logger
	client *http.Client
}

// NewTreasury constructs a treasury holdings fetcher.
func NewTreasury(opts TreasuryOptions, logger zerolog.Logger) *Treasury {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Treasury{
		opts:   opts,
		logger: logger.With().Str("component", "treasury_fetcher").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// FetchHoldings retrieves the current token list. Tokens without a price are
// returned with a nil PriceUSD; the caller decides how to weigh them.
func (t *Treasury) FetchHoldings(ctx context.Context) ([]TokenHolding, error) {
	if t.opts.URL == "" {
		return nil, errors.New("treasury api url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.opts.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("treasury api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payloadBytes)))
	}

	var res treasuryResponse
	if err := json.Unmarshal(payloadBytes, &res); err != nil {
		return nil, fmt.Errorf("decode treasury response: %w", err)
	}

	holdings := make([]TokenHolding, 0, len(res.Tokens))
	for _, token := range res.Tokens {
		raw, err := decimal.NewFromString(token.Balance)
		if err != nil {
			return nil, fmt.Errorf("parse balance for %s: %w", token.Symbol, err)
		}

		holding := TokenHolding{
			Symbol:     token.Symbol,
			RawBalance: raw,
			Decimals:   token.Decimals,
		}
		if token.PriceUSD != "" {
			price, err := decimal.NewFromString(string(token.PriceUSD))
			if err != nil {
				return nil, fmt.Errorf("parse price for %s: %w", token.Symbol, err)
			}
			holding.PriceUSD = &price
		}
		holdings = append(holdings, holding)
	}

	t.logger.Debug().Int("tokens", len(holdings)).Msg("fetched treasury holdings")
	return holdings, nil
}

type treasuryResponse struct {
	Tokens []struct {
		Symbol   string      `json:"symbol"`
		Balance  string      `json:"balance"`
		Decimals int32       `json:"decimals"`
		PriceUSD json.Number `json:"price_usd"`
	} `json:"tokens"`
}

var _ TreasuryFetcher = (*Treasury)(nil)
