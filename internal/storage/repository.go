package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	latestRatioSQL = `SELECT day, ratio, observed_at
    FROM xsushi_ratio_days
    ORDER BY observed_at DESC
    LIMIT 1;`

	selectDayForUpdateSQL = `SELECT day
    FROM xsushi_ratio_days
    WHERE day = $1
    FOR UPDATE;`

	insertDaySQL = `INSERT INTO xsushi_ratio_days (day, ratio, observed_at)
    VALUES ($1, $2, $3);`

	updateDaySQL = `UPDATE xsushi_ratio_days
    SET ratio = $2, observed_at = $3
    WHERE day = $1;`

	listBetweenSQL = `SELECT day, ratio, observed_at
    FROM xsushi_ratio_days
    WHERE observed_at >= $1
      AND observed_at <= $2
    ORDER BY observed_at;`

	listRecentSQL = `SELECT day, ratio, observed_at
    FROM xsushi_ratio_days
    ORDER BY observed_at DESC
    LIMIT $1;`

	countDaysSQL = `SELECT COUNT(*) FROM xsushi_ratio_days;`

	addSubscriberSQL = `INSERT INTO subscribers (chat_id)
    VALUES ($1)
    ON CONFLICT (chat_id) DO NOTHING;`

	removeSubscriberSQL = `DELETE FROM subscribers WHERE chat_id = $1;`

	listSubscribersSQL = `SELECT chat_id, created_at
    FROM subscribers
    ORDER BY created_at;`

	countSubscribersSQL = `SELECT COUNT(*) FROM subscribers;`
)

// RatioStore defines persistence operations for the daily ratio series.
type RatioStore interface {
	LatestRatio(ctx context.Context) (*RatioPoint, error)
	UpsertDay(ctx context.Context, point RatioPoint) (WriteOutcome, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]RatioPoint, error)
	ListRecent(ctx context.Context, limit int) ([]RatioPoint, error)
	CountDays(ctx context.Context) (int64, error)
}

// SubscriberStore defines the subscriber registry operations.
type SubscriberStore interface {
	AddSubscriber(ctx context.Context, chatID int64) error
	RemoveSubscriber(ctx context.Context, chatID int64) error
	ListSubscribers(ctx context.Context) ([]Subscriber, error)
	CountSubscribers(ctx context.Context) (int64, error)
}

// Store aggregates access to the ratio series and the subscriber registry.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// LatestRatio returns the most recently written point regardless of day,
// or nil if the series is empty.
func (s *Store) LatestRatio(ctx context.Context) (*RatioPoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	point, scanErr := scanRatioPoint(pool.QueryRow(ctx, latestRatioSQL))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest ratio: %w", scanErr)
	}
	return &point, nil
}

// UpsertDay writes a qualifying change into the daily series. The existence
// check and the write run in one transaction, row-locked on the day key, so
// concurrent cycles cannot produce a duplicate row for the same day.
func (s *Store) UpsertDay(ctx context.Context, point RatioPoint) (WriteOutcome, error) {
	pool, err := s.getPool()
	if err != nil {
		return "", err
	}

	day := DayOf(point.ObservedAt)
	ratio := point.Ratio.String()

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var existing time.Time
	scanErr := tx.QueryRow(ctx, selectDayForUpdateSQL, day).Scan(&existing)

	var outcome WriteOutcome
	switch {
	case scanErr == nil:
		if _, err := tx.Exec(ctx, updateDaySQL, day, ratio, point.ObservedAt); err != nil {
			return "", fmt.Errorf("update day row: %w", err)
		}
		outcome = OutcomeUpdated
	case errors.Is(scanErr, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx, insertDaySQL, day, ratio, point.ObservedAt); err != nil {
			return "", fmt.Errorf("insert day row: %w", err)
		}
		outcome = OutcomeInserted
	default:
		return "", fmt.Errorf("check day row: %w", scanErr)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit upsert tx: %w", err)
	}
	return outcome, nil
}

// ListBetween lists points whose write timestamp falls in [from, to].
func (s *Store) ListBetween(ctx context.Context, from, to time.Time) ([]RatioPoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list points between: %w", queryErr)
	}
	defer rows.Close()

	return collectRatioPoints(rows, 0)
}

// ListRecent lists the most recent points ordered by descending write time.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]RatioPoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent points: %w", queryErr)
	}
	defer rows.Close()

	return collectRatioPoints(rows, limit)
}

// CountDays counts stored daily rows.
func (s *Store) CountDays(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countDaysSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count days: %w", scanErr)
	}
	return count, nil
}

// AddSubscriber registers a chat; duplicates are ignored.
func (s *Store) AddSubscriber(ctx context.Context, chatID int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, addSubscriberSQL, chatID); execErr != nil {
		return fmt.Errorf("add subscriber: %w", execErr)
	}
	return nil
}

// RemoveSubscriber deletes a chat from the registry.
func (s *Store) RemoveSubscriber(ctx context.Context, chatID int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, removeSubscriberSQL, chatID); execErr != nil {
		return fmt.Errorf("remove subscriber: %w", execErr)
	}
	return nil
}

// ListSubscribers returns every registered chat.
func (s *Store) ListSubscribers(ctx context.Context) ([]Subscriber, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSubscribersSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list subscribers: %w", queryErr)
	}
	defer rows.Close()

	subs := make([]Subscriber, 0)
	for rows.Next() {
		var sub Subscriber
		if err := rows.Scan(&sub.ChatID, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return subs, nil
}

// CountSubscribers counts registered chats.
func (s *Store) CountSubscribers(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSubscribersSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count subscribers: %w", scanErr)
	}
	return count, nil
}

func collectRatioPoints(rows pgx.Rows, sizeHint int) ([]RatioPoint, error) {
	points := make([]RatioPoint, 0, sizeHint)
	for rows.Next() {
		point, scanErr := scanRatioPoint(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		points = append(points, point)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return points, nil
}

func scanRatioPoint(row pgx.Row) (RatioPoint, error) {
	var (
		day        time.Time
		ratioStr   string
		observedAt time.Time
	)

	if err := row.Scan(&day, &ratioStr, &observedAt); err != nil {
		return RatioPoint{}, err
	}

	ratio, err := decimal.NewFromString(ratioStr)
	if err != nil {
		return RatioPoint{}, fmt.Errorf("parse ratio: %w", err)
	}

	return RatioPoint{Day: day, Ratio: ratio, ObservedAt: observedAt}, nil
}

var _ RatioStore = (*Store)(nil)
var _ SubscriberStore = (*Store)(nil)
