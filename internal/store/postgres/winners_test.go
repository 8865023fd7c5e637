package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"listgate/internal/store"
)

func TestGetWinner_Found(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT identity, classification, confidence, last_updated\s+FROM winner_records`).
		WithArgs("SKU-1").
		WillReturnRows(sqlmock.NewRows([]string{"identity", "classification", "confidence", "last_updated"}).
			AddRow("SKU-1", "winner", 72, now))

	rec, err := s.GetWinner(context.Background(), "SKU-1")
	if err != nil {
		t.Fatalf("GetWinner failed: %v", err)
	}
	if rec.Classification != store.ClassWinner {
		t.Errorf("got classification %q, want winner", rec.Classification)
	}
	if rec.Confidence != 72 {
		t.Errorf("got confidence %d, want 72", rec.Confidence)
	}
}

func TestGetWinner_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`SELECT identity, classification, confidence, last_updated`).
		WithArgs("SKU-404").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetWinner(context.Background(), "SKU-404")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got error %v, want store.ErrNotFound", err)
	}
}

func TestMarkWinner_Applied(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`INSERT INTO winner_records .* ON CONFLICT \(identity\) DO UPDATE`).
		WithArgs("SKU-1", 80).
		WillReturnRows(sqlmock.NewRows([]string{"classification"}).AddRow("winner"))

	applied, err := s.MarkWinner(context.Background(), "SKU-1", 80)
	if err != nil {
		t.Fatalf("MarkWinner failed: %v", err)
	}
	if !applied {
		t.Error("expected MarkWinner to apply")
	}
}

func TestMarkWinner_BlockedByLoser(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	// The conditional upsert returns zero rows when the identity is a loser;
	// that is a no-op, not an error.
	mock.ExpectQuery(`INSERT INTO winner_records`).
		WithArgs("SKU-LOSER", 80).
		WillReturnError(sql.ErrNoRows)

	applied, err := s.MarkWinner(context.Background(), "SKU-LOSER", 80)
	if err != nil {
		t.Fatalf("MarkWinner failed: %v", err)
	}
	if applied {
		t.Error("expected loser to block MarkWinner")
	}
}

func TestMarkWinner_QueryGuardsLosers(t *testing.T) {
	// The loser guard must live in the statement itself, not in a separate
	// read. This catches a regression that would reintroduce the check-then-
	// write race.
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`ON CONFLICT \(identity\) DO UPDATE .* WHERE winner_records\.classification <> 'loser'`).
		WithArgs("SKU-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"classification"}).AddRow("winner"))

	if _, err := s.MarkWinner(context.Background(), "SKU-1", 50); err != nil {
		t.Fatalf("MarkWinner failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestMarkLoser_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`INSERT INTO winner_records .* SET classification = 'loser'`).
		WithArgs("SKU-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.MarkLoser(context.Background(), "SKU-1"); err != nil {
		t.Fatalf("MarkLoser failed: %v", err)
	}
}

func TestAdjustConfidence_Winner(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	now := time.Now()
	mock.ExpectQuery(`UPDATE winner_records\s+SET confidence = confidence \+ \$2`).
		WithArgs("SKU-1", 10, 30).
		WillReturnRows(sqlmock.NewRows([]string{"identity", "classification", "confidence", "last_updated"}).
			AddRow("SKU-1", "winner", 85, now))

	rec, err := s.AdjustConfidence(context.Background(), "SKU-1", 10, 30)
	if err != nil {
		t.Fatalf("AdjustConfidence failed: %v", err)
	}
	if rec == nil || rec.Confidence != 85 {
		t.Fatalf("got record %+v, want confidence 85", rec)
	}
}

func TestAdjustConfidence_DemotesAtFloor(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	now := time.Now()
	// The CASE expression flips the classification in the same statement.
	mock.ExpectQuery(`classification = CASE\s+WHEN confidence \+ \$2 <= \$3 THEN 'loser'`).
		WithArgs("SKU-1", -5, 30).
		WillReturnRows(sqlmock.NewRows([]string{"identity", "classification", "confidence", "last_updated"}).
			AddRow("SKU-1", "loser", 28, now))

	rec, err := s.AdjustConfidence(context.Background(), "SKU-1", -5, 30)
	if err != nil {
		t.Fatalf("AdjustConfidence failed: %v", err)
	}
	if rec.Classification != store.ClassLoser {
		t.Errorf("got classification %q, want loser", rec.Classification)
	}
}

func TestAdjustConfidence_NonWinnerUntouched(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`UPDATE winner_records`).
		WithArgs("SKU-UNKNOWN", 10, 30).
		WillReturnError(sql.ErrNoRows)

	rec, err := s.AdjustConfidence(context.Background(), "SKU-UNKNOWN", 10, 30)
	if err != nil {
		t.Fatalf("AdjustConfidence failed: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record for non-winner, got %+v", rec)
	}
}
