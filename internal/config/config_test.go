package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error without DATABASE_URL")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/listgate")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 6161 {
		t.Errorf("port = %d, want 6161", cfg.HTTPPort)
	}
	if cfg.MaxAttempts != 2 || cfg.WorkerPollInterval != time.Second {
		t.Errorf("worker defaults wrong: %+v", cfg)
	}
	if cfg.Threshold.Default != 65 || cfg.Threshold.Min != 45 || cfg.Threshold.Max != 85 {
		t.Errorf("threshold defaults wrong: %+v", cfg.Threshold)
	}
	if cfg.Throttle.DailyCap != 300 || cfg.Throttle.HourlyCap != 35 {
		t.Errorf("throttle defaults wrong: %+v", cfg.Throttle)
	}
	if cfg.DemotionFloor != 30 {
		t.Errorf("demotion floor = %d, want 30", cfg.DemotionFloor)
	}
	if cfg.PhaseTable != nil {
		t.Error("phase table should default to nil (built-in table)")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/listgate")
	t.Setenv("PORT", "8080")
	t.Setenv("THRESHOLD_DEFAULT", "70")
	t.Setenv("THROTTLE_DAILY_CAP", "150")
	t.Setenv("WORKER_POLL_INTERVAL", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("port = %d", cfg.HTTPPort)
	}
	if cfg.Threshold.Default != 70 {
		t.Errorf("threshold default = %v", cfg.Threshold.Default)
	}
	if cfg.Throttle.DailyCap != 150 {
		t.Errorf("daily cap = %d", cfg.Throttle.DailyCap)
	}
	if cfg.WorkerPollInterval != 250*time.Millisecond {
		t.Errorf("poll interval = %v", cfg.WorkerPollInterval)
	}
}

func TestLoad_RejectsInvalidThreshold(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/listgate")
	t.Setenv("THRESHOLD_MIN", "90")
	t.Setenv("THRESHOLD_MAX", "50")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error when min > max")
	}
}

func TestLoad_RejectsInvalidThrottle(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/listgate")
	t.Setenv("THROTTLE_MIN_DELAY_MS", "5000")
	t.Setenv("THROTTLE_MAX_DELAY_MS", "100")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error when max delay < min delay")
	}
}

func TestParsePhaseTable(t *testing.T) {
	table, err := parsePhaseTable("3:0:20,10:1:50,20:2:100")
	if err != nil {
		t.Fatalf("parsePhaseTable failed: %v", err)
	}
	if len(table) != 3 {
		t.Fatalf("got %d entries", len(table))
	}
	if table[1].DayThreshold != 10 || table[1].Phase != 1 || table[1].DailyCap != 50 {
		t.Errorf("entry wrong: %+v", table[1])
	}
}

func TestParsePhaseTable_RejectsDecreasingCaps(t *testing.T) {
	if _, err := parsePhaseTable("3:0:50,10:1:20"); err == nil {
		t.Fatal("expected an error for decreasing caps")
	}
}

func TestParsePhaseTable_RejectsMalformed(t *testing.T) {
	for _, raw := range []string{"3:0", "x:0:20", "3:y:20", "3:0:z"} {
		if _, err := parsePhaseTable(raw); err == nil {
			t.Errorf("%q: expected an error", raw)
		}
	}
}
