// Package memory implements the permanent winner/loser ledger consulted
// before any other admission gate.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"listgate/internal/store"
)

// DefaultDemotionFloor is the confidence at or below which a winner is
// demoted to loser.
const DefaultDemotionFloor = 30

// Memory wraps the winner store with the gating rules: losers are terminal,
// winners can be demoted only by confidence collapse, and store failures
// fail open so admission never blocks on the ledger.
type Memory struct {
	winners       store.WinnerStore
	demotionFloor int
	log           *slog.Logger
}

// New creates a Memory. A demotionFloor <= 0 uses DefaultDemotionFloor.
func New(winners store.WinnerStore, demotionFloor int, log *slog.Logger) *Memory {
	if demotionFloor <= 0 {
		demotionFloor = DefaultDemotionFloor
	}
	return &Memory{winners: winners, demotionFloor: demotionFloor, log: log}
}

// Classify returns the permanent classification for identity.
// Store unavailability reports unknown so normal gating proceeds.
func (m *Memory) Classify(ctx context.Context, identity string) store.Classification {
	rec, err := m.winners.GetWinner(ctx, identity)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.log.Warn("winner memory degraded, assuming unknown",
				"identity", identity, "error", err)
		}
		return store.ClassUnknown
	}
	return rec.Classification
}

// MarkWinner records identity as a winner with score as initial confidence.
// A known loser blocks the write; that no-op is logged, never an error.
func (m *Memory) MarkWinner(ctx context.Context, identity string, score int) error {
	applied, err := m.winners.MarkWinner(ctx, identity, score)
	if err != nil {
		return fmt.Errorf("mark winner: %w", err)
	}
	if !applied {
		m.log.Info("mark winner ignored, identity is a permanent loser",
			"identity", identity)
	}
	return nil
}

// MarkLoser records identity as a loser. Permanent.
func (m *Memory) MarkLoser(ctx context.Context, identity string) error {
	if err := m.winners.MarkLoser(ctx, identity); err != nil {
		return fmt.Errorf("mark loser: %w", err)
	}
	return nil
}

// AdjustConfidence adds delta to a winner's confidence. When confidence
// falls to or below the demotion floor the identity becomes a loser in the
// same atomic step. Unknown identities and losers are left untouched.
func (m *Memory) AdjustConfidence(ctx context.Context, identity string, delta int) (*store.WinnerRecord, error) {
	rec, err := m.winners.AdjustConfidence(ctx, identity, delta, m.demotionFloor)
	if err != nil {
		return nil, fmt.Errorf("adjust confidence: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	if rec.Classification == store.ClassLoser {
		m.log.Info("winner demoted to loser, confidence collapsed",
			"identity", identity, "confidence", rec.Confidence, "floor", m.demotionFloor)
	}
	return rec, nil
}
