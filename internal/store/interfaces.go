package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx.
// This allows passing either a connection pool or an active transaction
// to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// Queue is the admission job queue. Implementations must use
// SELECT ... FOR UPDATE SKIP LOCKED semantics so that an item is claimed by
// exactly one consumer per attempt.
type Queue interface {
	// Enqueue adds a job payload to the queue.
	Enqueue(ctx context.Context, payload json.RawMessage, visibleAfter time.Time) (int64, error)

	// Dequeue claims the oldest visible item, increments its attempt count
	// and hides it for the visibility timeout. Returns ErrNotFound when the
	// queue is empty.
	Dequeue(ctx context.Context) (*QueueItem, error)

	// Complete removes a claimed item after a terminal decision.
	Complete(ctx context.Context, queueID int64) error

	// Requeue makes a claimed item visible again at visibleAfter,
	// keeping its attempt count.
	Requeue(ctx context.Context, queueID int64, visibleAfter time.Time) error

	// ReturnToHead makes a claimed item immediately visible again and
	// refunds the attempt it consumed. Used by the kill switch so an
	// operator pause never costs a job a retry.
	ReturnToHead(ctx context.Context, queueID int64) error

	// Depth returns the number of items in the queue.
	Depth(ctx context.Context) (int64, error)
}

// WinnerStore is the permanent winner/loser ledger. Records are never
// deleted; a loser classification is terminal.
type WinnerStore interface {
	// GetWinner returns the record for identity, or ErrNotFound.
	GetWinner(ctx context.Context, identity string) (*WinnerRecord, error)

	// MarkWinner sets classification to winner with the given confidence
	// unless the identity is already a loser. Returns false on that no-op.
	MarkWinner(ctx context.Context, identity string, confidence int) (bool, error)

	// MarkLoser sets classification to loser unconditionally.
	MarkLoser(ctx context.Context, identity string) error

	// AdjustConfidence adds delta to a winner's confidence and atomically
	// demotes it to loser when the result falls to or below demotionFloor.
	// Returns nil when the identity is not a winner (nothing to adjust).
	AdjustConfidence(ctx context.Context, identity string, delta, demotionFloor int) (*WinnerRecord, error)
}

// ThresholdStore persists the adaptive threshold and its sampling window.
type ThresholdStore interface {
	// GetThresholdState returns the current state.
	GetThresholdState(ctx context.Context) (*ThresholdState, error)

	// RecordSample increments the window counters atomically and returns
	// the updated state.
	RecordSample(ctx context.Context, passed bool) (*ThresholdState, error)

	// AdjustWindow runs decide under the threshold row lock. When the
	// window holds at least minSamples samples, decide is called with the
	// current state, the returned threshold is persisted and the window
	// counters are zeroed, all in one transaction. Returns the resulting
	// state and whether an adjustment was applied. The row lock is what
	// keeps concurrent workers from double-applying a step for the same
	// window.
	AdjustWindow(ctx context.Context, minSamples int64, decide func(ThresholdState) float64) (*ThresholdState, bool, error)

	// ResetThreshold zeroes the window and restores the given default.
	ResetThreshold(ctx context.Context, def float64) (*ThresholdState, error)
}

// ThrottleStore persists throttle configuration, penalty and spacing state.
type ThrottleStore interface {
	// GetThrottleConfig returns the stored config, or ErrNotFound when the
	// operator has never set one.
	GetThrottleConfig(ctx context.Context) (*ThrottleConfig, error)

	// SetThrottleConfig replaces the stored config.
	SetThrottleConfig(ctx context.Context, cfg *ThrottleConfig) error

	// GetThrottleState returns penalty and last-action time.
	GetThrottleState(ctx context.Context) (*ThrottleState, error)

	// SetLastAction stamps the last admitted-action time.
	SetLastAction(ctx context.Context, t time.Time) error

	// AddPenalty raises the penalty by stepMs, clamped to maxMs, in a
	// single atomic statement. Returns the new penalty.
	AddPenalty(ctx context.Context, stepMs, maxMs int64) (int64, error)

	// DecayPenalty multiplies the penalty by num/den (rounded down,
	// floored at zero) in a single atomic statement. Returns the new
	// penalty.
	DecayPenalty(ctx context.Context, num, den int64) (int64, error)
}

// CounterStore provides atomic increment-with-expiry counters. Counters are
// scoped by (name, period); expired periods read as zero.
type CounterStore interface {
	// IncrCounter atomically increments the counter and extends its expiry
	// to at least now+ttl. Returns the new value.
	IncrCounter(ctx context.Context, name, period string, ttl time.Duration) (int64, error)

	// GetCounter returns the current value, or zero when absent or expired.
	GetCounter(ctx context.Context, name, period string) (int64, error)

	// PurgeExpired deletes expired counter rows and returns how many.
	PurgeExpired(ctx context.Context) (int64, error)
}

// RampStore persists the ramp's start date so the day index advances with
// the UTC calendar, not with worker ticks.
type RampStore interface {
	// EnsureRampStart records today as the ramp start if none is set and
	// returns the effective start date (YYYY-MM-DD, UTC).
	EnsureRampStart(ctx context.Context, today string) (string, error)

	// ResetRampStart overwrites the ramp start date.
	ResetRampStart(ctx context.Context, today string) error
}

// SwitchStore holds the global kill switch.
type SwitchStore interface {
	GetKillSwitch(ctx context.Context) (bool, error)
	SetKillSwitch(ctx context.Context, enabled bool) error
}
