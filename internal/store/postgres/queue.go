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

// VisibilityTimeout hides a claimed item from other consumers while the
// worker is deciding on it.
const VisibilityTimeout = 5 * time.Minute

// Enqueue adds a job payload to the admission queue.
func (s *Store) Enqueue(ctx context.Context, payload json.RawMessage, visibleAfter time.Time) (int64, error) {
	if visibleAfter.IsZero() {
		visibleAfter = time.Now()
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO admission_queue (payload, visible_after)
		VALUES ($1, $2)
		RETURNING id
	`, payload, visibleAfter).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return id, nil
}

// Dequeue claims the oldest visible item using SELECT ... FOR UPDATE SKIP LOCKED,
// increments its attempt count and hides it for VisibilityTimeout.
func (s *Store) Dequeue(ctx context.Context) (*store.QueueItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var item store.QueueItem
	err = tx.QueryRowContext(ctx, `
		SELECT id, attempt, payload
		FROM admission_queue
		WHERE visible_after <= NOW()
		ORDER BY id ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&item.QueueID, &item.Attempt, &item.Payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("dequeue query failed: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE admission_queue
		SET attempt = attempt + 1,
		    visible_after = NOW() + ($1 * INTERVAL '1 second')
		WHERE id = $2
	`, VisibilityTimeout.Seconds(), item.QueueID)
	if err != nil {
		return nil, fmt.Errorf("dequeue claim failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	item.Attempt++
	return &item, nil
}

// Complete removes an item after a terminal decision.
func (s *Store) Complete(ctx context.Context, queueID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM admission_queue WHERE id = $1", queueID)
	if err != nil {
		return fmt.Errorf("failed to complete queue item %d: %w", queueID, err)
	}
	return nil
}

// Requeue makes a claimed item visible again at visibleAfter, keeping its
// attempt count so retries stay bounded.
func (s *Store) Requeue(ctx context.Context, queueID int64, visibleAfter time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE admission_queue
		SET visible_after = $1
		WHERE id = $2
	`, visibleAfter, queueID)
	if err != nil {
		return fmt.Errorf("failed to requeue item %d: %w", queueID, err)
	}
	return nil
}

// ReturnToHead makes a claimed item immediately visible and refunds the
// attempt it consumed. An operator pause must never cost a job a retry.
func (s *Store) ReturnToHead(ctx context.Context, queueID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE admission_queue
		SET visible_after = NOW(),
		    attempt = GREATEST(0, attempt - 1)
		WHERE id = $1
	`, queueID)
	if err != nil {
		return fmt.Errorf("failed to return item %d to head: %w", queueID, err)
	}
	return nil
}

// Depth returns the number of items in the queue.
func (s *Store) Depth(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM admission_queue").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}
