package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"listgate/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return &Store{db: db}, mock
}

func TestEnqueue_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	ctx := context.Background()
	payload := json.RawMessage(`{"identity": "SKU-1"}`)
	expectedQueueID := int64(42)
	visibleAfter := time.Now()

	mock.ExpectQuery(`INSERT INTO admission_queue`).
		WithArgs(payload, visibleAfter).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(expectedQueueID))

	id, err := s.Enqueue(ctx, payload, visibleAfter)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if id != expectedQueueID {
		t.Errorf("got id %d, want %d", id, expectedQueueID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestEnqueue_ZeroVisibleAfterDefaultsToNow(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	payload := json.RawMessage(`{}`)

	mock.ExpectQuery(`INSERT INTO admission_queue`).
		WithArgs(payload, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	if _, err := s.Enqueue(context.Background(), payload, time.Time{}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDequeue_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	payload := json.RawMessage(`{"identity": "SKU-1"}`)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, attempt, payload\s+FROM admission_queue .* FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "attempt", "payload"}).
			AddRow(int64(7), 0, payload))
	mock.ExpectExec(`UPDATE admission_queue`).
		WithArgs(VisibilityTimeout.Seconds(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	item, err := s.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if item.QueueID != 7 {
		t.Errorf("got queueID %d, want 7", item.QueueID)
	}
	// The claim counts as an attempt.
	if item.Attempt != 1 {
		t.Errorf("got attempt %d, want 1", item.Attempt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDequeue_EmptyQueue(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, attempt, payload`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.Dequeue(context.Background())
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got error %v, want store.ErrNotFound", err)
	}
}

func TestComplete_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`DELETE FROM admission_queue WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Complete(context.Background(), 5); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRequeue_KeepsAttemptCount(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	visibleAfter := time.Now().Add(30 * time.Second)

	// Requeue only moves visibility; the attempt spent on this claim stays
	// spent so retries remain bounded.
	mock.ExpectExec(`UPDATE admission_queue\s+SET visible_after = \$1\s+WHERE id = \$2`).
		WithArgs(visibleAfter, int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Requeue(context.Background(), 9, visibleAfter); err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestReturnToHead_RefundsAttempt(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	// The query must refund the attempt so an operator pause never costs a retry.
	mock.ExpectExec(`UPDATE admission_queue\s+SET visible_after = NOW\(\),\s+attempt = GREATEST\(0, attempt - 1\)`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.ReturnToHead(context.Background(), 3); err != nil {
		t.Fatalf("ReturnToHead failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDepth(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM admission_queue`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))

	n, err := s.Depth(context.Background())
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	if n != 12 {
		t.Errorf("got depth %d, want 12", n)
	}
}
