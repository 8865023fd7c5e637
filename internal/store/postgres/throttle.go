package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"listgate/internal/store"
)

const throttleConfigKey = "throttle:config"

// GetThrottleConfig returns the operator-set config, or store.ErrNotFound
// when none has ever been set.
func (s *Store) GetThrottleConfig(ctx context.Context) (*store.ThrottleConfig, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE key = $1", throttleConfigKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get throttle config: %w", err)
	}

	var cfg store.ThrottleConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("corrupt throttle config: %w", err)
	}
	return &cfg, nil
}

// SetThrottleConfig replaces the stored config.
func (s *Store) SetThrottleConfig(ctx context.Context, cfg *store.ThrottleConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal throttle config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`, throttleConfigKey, string(raw))
	if err != nil {
		return fmt.Errorf("failed to set throttle config: %w", err)
	}
	return nil
}

// GetThrottleState returns penalty and last-action time.
func (s *Store) GetThrottleState(ctx context.Context) (*store.ThrottleState, error) {
	var st store.ThrottleState
	err := s.db.QueryRowContext(ctx, `
		SELECT penalty_ms, last_action_at FROM throttle_state WHERE id
	`).Scan(&st.PenaltyMs, &st.LastActionAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get throttle state: %w", err)
	}
	return &st, nil
}

// SetLastAction stamps the last admitted-action time.
func (s *Store) SetLastAction(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE throttle_state SET last_action_at = $1 WHERE id", t)
	if err != nil {
		return fmt.Errorf("failed to set last action: %w", err)
	}
	return nil
}

// AddPenalty raises the penalty by stepMs, clamped to maxMs, atomically.
func (s *Store) AddPenalty(ctx context.Context, stepMs, maxMs int64) (int64, error) {
	var penalty int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE throttle_state
		SET penalty_ms = LEAST($1, penalty_ms + $2)
		WHERE id
		RETURNING penalty_ms
	`, maxMs, stepMs).Scan(&penalty)
	if err != nil {
		return 0, fmt.Errorf("failed to add penalty: %w", err)
	}
	return penalty, nil
}

// DecayPenalty multiplies the penalty by num/den (integer floor) atomically.
// The penalty fades gradually; it never snaps back to zero.
func (s *Store) DecayPenalty(ctx context.Context, num, den int64) (int64, error) {
	var penalty int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE throttle_state
		SET penalty_ms = GREATEST(0, (penalty_ms * $1) / $2)
		WHERE id
		RETURNING penalty_ms
	`, num, den).Scan(&penalty)
	if err != nil {
		return 0, fmt.Errorf("failed to decay penalty: %w", err)
	}
	return penalty, nil
}
