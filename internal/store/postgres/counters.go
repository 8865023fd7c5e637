package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IncrCounter atomically increments a period-scoped counter and extends its
// expiry to at least now+ttl. A row whose expiry already passed restarts
// from 1, which is what lets stale periods read as zero without a janitor
// on the hot path.
func (s *Store) IncrCounter(ctx context.Context, name, period string, ttl time.Duration) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO counters (name, period, value, expires_at)
		VALUES ($1, $2, 1, NOW() + ($3 * INTERVAL '1 second'))
		ON CONFLICT (name, period) DO UPDATE
		SET value = CASE WHEN counters.expires_at <= NOW() THEN 1 ELSE counters.value + 1 END,
		    expires_at = GREATEST(counters.expires_at, NOW() + ($3 * INTERVAL '1 second'))
		RETURNING value
	`, name, period, ttl.Seconds()).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s/%s: %w", name, period, err)
	}
	return value, nil
}

// GetCounter returns the current value, or zero when absent or expired.
func (s *Store) GetCounter(ctx context.Context, name, period string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM counters
		WHERE name = $1 AND period = $2 AND expires_at > NOW()
	`, name, period).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get counter %s/%s: %w", name, period, err)
	}
	return value, nil
}

// PurgeExpired deletes expired counter rows to bound storage growth.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM counters WHERE expires_at <= NOW()")
	if err != nil {
		return 0, fmt.Errorf("failed to purge counters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}
