package fetcher

import (
	"bytes"
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

const sushiBarStatsQuery = "query SushiBarStats {\n  sushiBarStats {\n    xSushiSushiRatio\n  }\n}"

// GraphOptions parameterise the Sushi data GraphQL fetcher.
type GraphOptions struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Graph fetches the bar ratio from the Sushi data GraphQL endpoint.
type Graph struct {
	opts   GraphOptions
	logger zerolog.Logger
	client *http.Client
}

// NewGraph constructs the GraphQL ratio fetcher.
func NewGraph(opts GraphOptions, logger zerolog.Logger) *Graph {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Graph{
		opts:   opts,
		logger: logger.With().Str("component", "graph_fetcher").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// FetchRatio posts the SushiBarStats operation and returns xSushiSushiRatio
// quantized to the fixed ratio precision.
func (g *Graph) FetchRatio(ctx context.Context) (decimal.Decimal, error) {
	if g.opts.URL == "" {
		return decimal.Decimal{}, errors.New("sushi graphql url not configured")
	}

	reqPayload := graphQuery{
		OperationName: "SushiBarStats",
		Query:         sushiBarStatsQuery,
		Variables:     map[string]any{},
	}

	body, err := json.Marshal(reqPayload)
	if err != nil {
		return decimal.Decimal{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.URL, bytes.NewReader(body))
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(g.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Decimal{}, fmt.Errorf("sushi graphql error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payloadBytes)))
	}

	var res graphResponse
	if err := json.Unmarshal(payloadBytes, &res); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode graphql response: %w", err)
	}
	if len(res.Errors) > 0 {
		return decimal.Decimal{}, fmt.Errorf("sushi graphql error: %s", res.Errors[0].Message)
	}

	raw := res.Data.SushiBarStats.XSushiSushiRatio.String()
	if raw == "" {
		return decimal.Decimal{}, errors.New("xSushiSushiRatio field missing")
	}

	ratio, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse ratio %q: %w", raw, err)
	}

	ratio = ratio.Round(RatioPrecision)
	g.logger.Debug().Str("ratio", ratio.String()).Msg("fetched ratio from graphql")
	return ratio, nil
}

type graphQuery struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

type graphResponse struct {
	Data struct {
		SushiBarStats struct {
			XSushiSushiRatio json.Number `json:"xSushiSushiRatio"`
		} `json:"sushiBarStats"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

var _ RatioFetcher = (*Graph)(nil)
