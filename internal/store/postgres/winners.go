package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"listgate/internal/store"
)

// GetWinner returns the record for identity, or store.ErrNotFound.
func (s *Store) GetWinner(ctx context.Context, identity string) (*store.WinnerRecord, error) {
	var rec store.WinnerRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT identity, classification, confidence, last_updated
		FROM winner_records
		WHERE identity = $1
	`, identity).Scan(&rec.Identity, &rec.Classification, &rec.Confidence, &rec.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get winner record %q: %w", identity, err)
	}
	return &rec, nil
}

// MarkWinner upserts a winner classification unless the identity is already
// a loser. The WHERE clause on the upsert makes the loser check and the
// write a single atomic statement; zero rows back means the loser blocked it.
func (s *Store) MarkWinner(ctx context.Context, identity string, confidence int) (bool, error) {
	var out string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO winner_records (identity, classification, confidence, last_updated)
		VALUES ($1, 'winner', $2, NOW())
		ON CONFLICT (identity) DO UPDATE
		SET classification = 'winner',
		    confidence = EXCLUDED.confidence,
		    last_updated = NOW()
		WHERE winner_records.classification <> 'loser'
		RETURNING classification
	`, identity, confidence).Scan(&out)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Identity is a permanent loser.
			return false, nil
		}
		return false, fmt.Errorf("failed to mark winner %q: %w", identity, err)
	}
	return true, nil
}

// MarkLoser sets classification to loser unconditionally. Permanent.
func (s *Store) MarkLoser(ctx context.Context, identity string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO winner_records (identity, classification, confidence, last_updated)
		VALUES ($1, 'loser', 0, NOW())
		ON CONFLICT (identity) DO UPDATE
		SET classification = 'loser',
		    last_updated = NOW()
	`, identity)
	if err != nil {
		return fmt.Errorf("failed to mark loser %q: %w", identity, err)
	}
	return nil
}

// AdjustConfidence adds delta to a winner's confidence; the CASE expression
// demotes it to loser in the same statement when the result falls to or
// below demotionFloor. Non-winners are untouched and return nil.
func (s *Store) AdjustConfidence(ctx context.Context, identity string, delta, demotionFloor int) (*store.WinnerRecord, error) {
	var rec store.WinnerRecord
	err := s.db.QueryRowContext(ctx, `
		UPDATE winner_records
		SET confidence = confidence + $2,
		    classification = CASE
		        WHEN confidence + $2 <= $3 THEN 'loser'
		        ELSE classification
		    END,
		    last_updated = NOW()
		WHERE identity = $1 AND classification = 'winner'
		RETURNING identity, classification, confidence, last_updated
	`, identity, delta, demotionFloor).Scan(&rec.Identity, &rec.Classification, &rec.Confidence, &rec.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to adjust confidence for %q: %w", identity, err)
	}
	return &rec, nil
}
