package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// WriteOutcome reports how an upsert resolved against the daily series.
type WriteOutcome string

const (
	// OutcomeInserted 表示当天首次写入，新建了一行。
	OutcomeInserted WriteOutcome = "inserted"
	// OutcomeUpdated 表示当天已有记录，值与时间戳被覆盖。
	OutcomeUpdated WriteOutcome = "updated"
)

// RatioPoint is one persisted row of the daily series: the latest ratio
// recorded for a UTC calendar day and the instant of the write that produced it.
type RatioPoint struct {
	Day        time.Time
	Ratio      decimal.Decimal
	ObservedAt time.Time
}

// Subscriber identifies a Telegram chat that receives change notifications.
type Subscriber struct {
	ChatID    int64
	CreatedAt time.Time
}

// DayOf derives the calendar-date key a timestamp collapses into. Bucketing is
// an explicit transformation here, not a side effect of a truncating query.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
