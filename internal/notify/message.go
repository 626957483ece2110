package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"xsushi-ratio-tracker/internal/enrich"
	"xsushi-ratio-tracker/internal/fetcher"
)

// ErrZeroRatio marks a degenerate ratio that cannot be inverted. Treated as a
// non-fatal compose failure: the upsert already happened, only this cycle's
// notification is skipped.
var ErrZeroRatio = errors.New("ratio is zero, cannot compose message")

var oneHundred = decimal.NewFromInt(100)

// Compose renders the change notification. Pure formatting, no side effects;
// output is locale-independent.
func Compose(ratio decimal.Decimal, prior *decimal.Decimal, treasury enrich.Value, now time.Time) (string, error) {
	if ratio.IsZero() {
		return "", ErrZeroRatio
	}

	inverse := decimal.NewFromInt(1).DivRound(ratio, fetcher.RatioPrecision)
	changePct := ChangePercent(ratio, prior)

	builder := strings.Builder{}
	builder.WriteString("Reward distributed!\n")
	builder.WriteString(fmt.Sprintf("xSushi/Sushi = %s\n", inverse.StringFixed(fetcher.RatioPrecision)))
	builder.WriteString(fmt.Sprintf("Sushi/xSushi = %s\n", ratio.StringFixed(fetcher.RatioPrecision)))
	builder.WriteString(fmt.Sprintf("Last change date: %s\n", now.UTC().Format("2006-01-02 15:04")))
	builder.WriteString(fmt.Sprintf("Last change: %s%%\n", changePct.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Treasury: $%s (%s WETH)\n", treasury.TotalUSD.StringFixed(0), treasury.WrappedBalance.StringFixed(2)))
	builder.WriteString("\nTo unsubscribe, use /stop")
	return builder.String(), nil
}

// ChangePercent computes abs((new - prior) / prior * 100) at 2 decimals.
// Defined as 0.00 when the prior value is absent or zero.
func ChangePercent(ratio decimal.Decimal, prior *decimal.Decimal) decimal.Decimal {
	if prior == nil || prior.IsZero() {
		return decimal.Zero.Round(2)
	}
	return ratio.Sub(*prior).Div(*prior).Mul(oneHundred).Abs().Round(2)
}
