package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestEnsureRampStart_FirstRun(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`INSERT INTO kv .* ON CONFLICT \(key\) DO NOTHING`).
		WithArgs("ramp:start", "2026-09-01").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT value FROM kv WHERE key = \$1`).
		WithArgs("ramp:start").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("2026-09-01"))

	start, err := s.EnsureRampStart(context.Background(), "2026-09-01")
	if err != nil {
		t.Fatalf("EnsureRampStart failed: %v", err)
	}
	if start != "2026-09-01" {
		t.Errorf("got start %q, want 2026-09-01", start)
	}
}

func TestEnsureRampStart_ExistingStartWins(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	// DO NOTHING means a later caller cannot move the start date.
	mock.ExpectExec(`ON CONFLICT \(key\) DO NOTHING`).
		WithArgs("ramp:start", "2026-09-01").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT value FROM kv`).
		WithArgs("ramp:start").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("2026-08-15"))

	start, err := s.EnsureRampStart(context.Background(), "2026-09-01")
	if err != nil {
		t.Fatalf("EnsureRampStart failed: %v", err)
	}
	if start != "2026-08-15" {
		t.Errorf("got start %q, want the original 2026-08-15", start)
	}
}

func TestGetKillSwitch_AbsentMeansOff(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`SELECT value FROM kv`).
		WithArgs("engine:killswitch").
		WillReturnError(sql.ErrNoRows)

	on, err := s.GetKillSwitch(context.Background())
	if err != nil {
		t.Fatalf("GetKillSwitch failed: %v", err)
	}
	if on {
		t.Error("absent kill switch must read as off")
	}
}

func TestSetKillSwitch(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`INSERT INTO kv`).
		WithArgs("engine:killswitch", "1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.SetKillSwitch(context.Background(), true); err != nil {
		t.Fatalf("SetKillSwitch failed: %v", err)
	}

	mock.ExpectExec(`INSERT INTO kv`).
		WithArgs("engine:killswitch", "0").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.SetKillSwitch(context.Background(), false); err != nil {
		t.Fatalf("SetKillSwitch failed: %v", err)
	}
}
