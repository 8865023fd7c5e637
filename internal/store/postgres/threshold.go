package postgres

import (
	"context"
	"fmt"

	"listgate/internal/store"
)

// GetThresholdState returns the current adaptive threshold state.
func (s *Store) GetThresholdState(ctx context.Context) (*store.ThresholdState, error) {
	var st store.ThresholdState
	err := s.db.QueryRowContext(ctx, `
		SELECT threshold, window_seen, window_passed, last_adjusted_at
		FROM threshold_state
		WHERE id
	`).Scan(&st.Threshold, &st.WindowSeen, &st.WindowPassed, &st.LastAdjustedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get threshold state: %w", err)
	}
	return &st, nil
}

// RecordSample increments the window counters in one atomic statement.
func (s *Store) RecordSample(ctx context.Context, passed bool) (*store.ThresholdState, error) {
	var st store.ThresholdState
	err := s.db.QueryRowContext(ctx, `
		UPDATE threshold_state
		SET window_seen = window_seen + 1,
		    window_passed = window_passed + CASE WHEN $1 THEN 1 ELSE 0 END
		WHERE id
		RETURNING threshold, window_seen, window_passed, last_adjusted_at
	`, passed).Scan(&st.Threshold, &st.WindowSeen, &st.WindowPassed, &st.LastAdjustedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record sample: %w", err)
	}
	return &st, nil
}

// AdjustWindow performs the read-decide-write rollover under the threshold
// row lock. Concurrent workers block on FOR UPDATE, and whoever arrives
// second sees the zeroed window and skips, so a step is never double-applied.
func (s *Store) AdjustWindow(ctx context.Context, minSamples int64, decide func(store.ThresholdState) float64) (*store.ThresholdState, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var st store.ThresholdState
	err = tx.QueryRowContext(ctx, `
		SELECT threshold, window_seen, window_passed, last_adjusted_at
		FROM threshold_state
		WHERE id
		FOR UPDATE
	`).Scan(&st.Threshold, &st.WindowSeen, &st.WindowPassed, &st.LastAdjustedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock threshold state: %w", err)
	}

	if st.WindowSeen < minSamples || st.WindowSeen == 0 {
		return &st, false, nil
	}

	next := decide(st)

	var out store.ThresholdState
	err = tx.QueryRowContext(ctx, `
		UPDATE threshold_state
		SET threshold = $1,
		    window_seen = 0,
		    window_passed = 0,
		    last_adjusted_at = NOW()
		WHERE id
		RETURNING threshold, window_seen, window_passed, last_adjusted_at
	`, next).Scan(&out.Threshold, &out.WindowSeen, &out.WindowPassed, &out.LastAdjustedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to apply threshold adjustment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	return &out, true, nil
}

// ResetThreshold zeroes the window and restores the given default.
func (s *Store) ResetThreshold(ctx context.Context, def float64) (*store.ThresholdState, error) {
	var st store.ThresholdState
	err := s.db.QueryRowContext(ctx, `
		UPDATE threshold_state
		SET threshold = $1,
		    window_seen = 0,
		    window_passed = 0,
		    last_adjusted_at = NULL
		WHERE id
		RETURNING threshold, window_seen, window_passed, last_adjusted_at
	`, def).Scan(&st.Threshold, &st.WindowSeen, &st.WindowPassed, &st.LastAdjustedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to reset threshold: %w", err)
	}
	return &st, nil
}
