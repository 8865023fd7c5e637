package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	rampStartKey  = "ramp:start"
	killSwitchKey = "engine:killswitch"
)

// EnsureRampStart records today as the ramp start date if none exists and
// returns the effective start. Idempotent, so every worker and every restart
// agrees on the same day index.
func (s *Store) EnsureRampStart(ctx context.Context, today string) (string, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO NOTHING
	`, rampStartKey, today)
	if err != nil {
		return "", fmt.Errorf("failed to ensure ramp start: %w", err)
	}

	var start string
	err = s.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE key = $1", rampStartKey).Scan(&start)
	if err != nil {
		return "", fmt.Errorf("failed to read ramp start: %w", err)
	}
	return start, nil
}

// ResetRampStart overwrites the ramp start date.
func (s *Store) ResetRampStart(ctx context.Context, today string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`, rampStartKey, today)
	if err != nil {
		return fmt.Errorf("failed to reset ramp start: %w", err)
	}
	return nil
}

// GetKillSwitch reads the global kill switch; absent means off.
func (s *Store) GetKillSwitch(ctx context.Context) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE key = $1", killSwitchKey).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get kill switch: %w", err)
	}
	return value == "1", nil
}

// SetKillSwitch sets the global kill switch.
func (s *Store) SetKillSwitch(ctx context.Context, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`, killSwitchKey, value)
	if err != nil {
		return fmt.Errorf("failed to set kill switch: %w", err)
	}
	return nil
}
