package throttle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"listgate/internal/store"
)

type fakeThrottleStore struct {
	cfg        *store.ThrottleConfig
	penaltyMs  int64
	lastAction *time.Time
	err        error
}

func (f *fakeThrottleStore) GetThrottleConfig(ctx context.Context) (*store.ThrottleConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.cfg == nil {
		return nil, store.ErrNotFound
	}
	return f.cfg, nil
}

func (f *fakeThrottleStore) SetThrottleConfig(ctx context.Context, cfg *store.ThrottleConfig) error {
	if f.err != nil {
		return f.err
	}
	f.cfg = cfg
	return nil
}

func (f *fakeThrottleStore) GetThrottleState(ctx context.Context) (*store.ThrottleState, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &store.ThrottleState{PenaltyMs: f.penaltyMs, LastActionAt: f.lastAction}, nil
}

func (f *fakeThrottleStore) SetLastAction(ctx context.Context, t time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.lastAction = &t
	return nil
}

func (f *fakeThrottleStore) AddPenalty(ctx context.Context, stepMs, maxMs int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.penaltyMs += stepMs
	if f.penaltyMs > maxMs {
		f.penaltyMs = maxMs
	}
	return f.penaltyMs, nil
}

func (f *fakeThrottleStore) DecayPenalty(ctx context.Context, num, den int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.penaltyMs = f.penaltyMs * num / den
	if f.penaltyMs < 0 {
		f.penaltyMs = 0
	}
	return f.penaltyMs, nil
}

type fakeCounterStore struct {
	counts map[string]int64
	err    error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counts: make(map[string]int64)}
}

func (f *fakeCounterStore) IncrCounter(ctx context.Context, name, period string, ttl time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[name+"/"+period]++
	return f.counts[name+"/"+period], nil
}

func (f *fakeCounterStore) GetCounter(ctx context.Context, name, period string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[name+"/"+period], nil
}

func (f *fakeCounterStore) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestThrottle wires a Throttle with a deterministic clock, a recording
// sleep and a fixed random source.
func newTestThrottle(cfg store.ThrottleConfig, now time.Time) (*Throttle, *fakeThrottleStore, *fakeCounterStore, *[]time.Duration) {
	ts := &fakeThrottleStore{cfg: &cfg}
	cs := newFakeCounterStore()
	slept := &[]time.Duration{}

	tr := New(ts, cs, store.ThrottleConfig{}, testLogger())
	tr.now = func() time.Time { return now }
	tr.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	tr.randInt = func(n int64) int64 { return 0 }
	return tr, ts, cs, slept
}

func fixedNow() time.Time {
	return time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
}

func TestWaitTurn_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	tr, _, _, slept := newTestThrottle(cfg, fixedNow())

	res, err := tr.WaitTurn(context.Background())
	if err != nil {
		t.Fatalf("WaitTurn failed: %v", err)
	}
	if res.Reason != ReasonDisabled {
		t.Errorf("got reason %q, want disabled", res.Reason)
	}
	if len(*slept) != 0 {
		t.Errorf("disabled throttle must not sleep, slept %v", *slept)
	}
}

func TestWaitTurn_FirstActionNoWait(t *testing.T) {
	tr, ts, _, slept := newTestThrottle(DefaultConfig(), fixedNow())

	res, err := tr.WaitTurn(context.Background())
	if err != nil {
		t.Fatalf("WaitTurn failed: %v", err)
	}
	if res.Reason != ReasonSpacing || res.WaitedMs != 0 {
		t.Errorf("got %+v, want zero spacing wait on first action", res)
	}
	if len(*slept) != 1 || (*slept)[0] != 0 {
		t.Errorf("got sleeps %v, want a single zero sleep", *slept)
	}
	if ts.lastAction == nil {
		t.Error("last action must be stamped before returning")
	}
}

func TestWaitTurn_SpacingRelativeToLastAction(t *testing.T) {
	now := fixedNow()
	cfg := DefaultConfig()
	cfg.MinDelayMs = 6000
	cfg.MaxDelayMs = 6000 // deterministic spacing
	tr, ts, _, slept := newTestThrottle(cfg, now)

	last := now.Add(-2 * time.Second)
	ts.lastAction = &last

	res, err := tr.WaitTurn(context.Background())
	if err != nil {
		t.Fatalf("WaitTurn failed: %v", err)
	}
	if res.Reason != ReasonSpacing {
		t.Fatalf("got reason %q, want spacing", res.Reason)
	}
	// 6000ms target minus 2000ms elapsed.
	if want := 4 * time.Second; (*slept)[0] != want {
		t.Errorf("got wait %v, want %v", (*slept)[0], want)
	}
}

func TestWaitTurn_PenaltyExtendsSpacing(t *testing.T) {
	now := fixedNow()
	cfg := DefaultConfig()
	cfg.MinDelayMs = 6000
	cfg.MaxDelayMs = 6000
	tr, ts, _, slept := newTestThrottle(cfg, now)

	last := now
	ts.lastAction = &last
	ts.penaltyMs = 7000

	if _, err := tr.WaitTurn(context.Background()); err != nil {
		t.Fatalf("WaitTurn failed: %v", err)
	}
	if want := 13 * time.Second; (*slept)[0] != want {
		t.Errorf("got wait %v, want %v (spacing plus penalty)", (*slept)[0], want)
	}
}

func TestWaitTurn_HourlyCapWaitsToNextHour(t *testing.T) {
	now := fixedNow() // 10:30:00 UTC
	tr, _, cs, slept := newTestThrottle(DefaultConfig(), now)

	cs.counts[store.CounterThrottleHour+"/"+store.HourPeriod(now)] = DefaultHourlyCap

	res, err := tr.WaitTurn(context.Background())
	if err != nil {
		t.Fatalf("WaitTurn failed: %v", err)
	}
	if res.Reason != ReasonHourlyCap {
		t.Fatalf("got reason %q, want hourlyCap", res.Reason)
	}
	if want := 30 * time.Minute; (*slept)[0] != want {
		t.Errorf("got wait %v, want %v", (*slept)[0], want)
	}
}

func TestWaitTurn_DailyCapWaitsToMidnight(t *testing.T) {
	now := fixedNow() // 10:30:00 UTC
	tr, _, cs, slept := newTestThrottle(DefaultConfig(), now)

	cs.counts[store.CounterThrottleDay+"/"+store.DayPeriod(now)] = DefaultDailyCap

	res, err := tr.WaitTurn(context.Background())
	if err != nil {
		t.Fatalf("WaitTurn failed: %v", err)
	}
	if res.Reason != ReasonDailyCap {
		t.Fatalf("got reason %q, want dailyCap", res.Reason)
	}
	if want := 13*time.Hour + 30*time.Minute; (*slept)[0] != want {
		t.Errorf("got wait %v, want %v", (*slept)[0], want)
	}
}

func TestWaitTurn_FailsOpenWithBoundedDelay(t *testing.T) {
	tr, _, cs, slept := newTestThrottle(DefaultConfig(), fixedNow())
	cs.err = errors.New("db down")

	res, err := tr.WaitTurn(context.Background())
	if err != nil {
		t.Fatalf("WaitTurn failed: %v", err)
	}
	if res.Reason != ReasonDegraded {
		t.Errorf("got reason %q, want degraded", res.Reason)
	}
	if (*slept)[0] != degradedDelay {
		t.Errorf("got wait %v, want bounded %v", (*slept)[0], degradedDelay)
	}
}

func TestWaitTurn_ContextCancelledDuringSleep(t *testing.T) {
	now := fixedNow()
	cfg := DefaultConfig()
	cfg.MinDelayMs = 6000
	cfg.MaxDelayMs = 6000
	tr, ts, _, _ := newTestThrottle(cfg, now)
	last := now
	ts.lastAction = &last
	tr.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	_, err := tr.WaitTurn(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got error %v, want context.Canceled", err)
	}
	// A cancelled wait must not count as an action.
	if ts.lastAction != &last && ts.lastAction != nil && !ts.lastAction.Equal(last) {
		t.Error("last action must not move on a cancelled wait")
	}
}

func TestOnSuccess_CountsAndDecays(t *testing.T) {
	now := fixedNow()
	tr, ts, cs, _ := newTestThrottle(DefaultConfig(), now)
	ts.penaltyMs = 10000

	if err := tr.OnSuccess(context.Background()); err != nil {
		t.Fatalf("OnSuccess failed: %v", err)
	}

	if got := cs.counts[store.CounterThrottleDay+"/"+store.DayPeriod(now)]; got != 1 {
		t.Errorf("day count %d, want 1", got)
	}
	if got := cs.counts[store.CounterThrottleHour+"/"+store.HourPeriod(now)]; got != 1 {
		t.Errorf("hour count %d, want 1", got)
	}
	if ts.penaltyMs != 6000 {
		t.Errorf("penalty %d, want 6000 after x0.6 decay", ts.penaltyMs)
	}
}

func TestOnError_PenaltyClimbsToCeiling(t *testing.T) {
	tr, ts, _, _ := newTestThrottle(DefaultConfig(), fixedNow())
	ctx := context.Background()

	prev := int64(-1)
	for i := 0; i < 30; i++ {
		if err := tr.OnError(ctx); err != nil {
			t.Fatalf("OnError failed: %v", err)
		}
		if ts.penaltyMs < prev {
			t.Fatalf("penalty went down: %d after %d", ts.penaltyMs, prev)
		}
		prev = ts.penaltyMs
	}
	if ts.penaltyMs != DefaultPenaltyMaxMs {
		t.Errorf("penalty %d, want ceiling %d", ts.penaltyMs, DefaultPenaltyMaxMs)
	}
}

func TestPenaltyDecayIsGradual(t *testing.T) {
	tr, ts, _, _ := newTestThrottle(DefaultConfig(), fixedNow())
	ctx := context.Background()

	tr.OnError(ctx)
	tr.OnError(ctx) // 14000

	first := ts.penaltyMs
	tr.OnSuccess(ctx)
	if ts.penaltyMs == 0 || ts.penaltyMs >= first {
		t.Errorf("penalty %d after one success, want a partial decay of %d", ts.penaltyMs, first)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*store.ThrottleConfig)
		wantErr bool
	}{
		{"defaults valid", func(c *store.ThrottleConfig) {}, false},
		{"negative daily cap", func(c *store.ThrottleConfig) { c.DailyCap = -1 }, true},
		{"negative hourly cap", func(c *store.ThrottleConfig) { c.HourlyCap = -5 }, true},
		{"max below min delay", func(c *store.ThrottleConfig) { c.MaxDelayMs = c.MinDelayMs - 1 }, true},
		{"negative penalty step", func(c *store.ThrottleConfig) { c.PenaltyStepMs = -1 }, true},
		{"penalty max below step", func(c *store.ThrottleConfig) { c.PenaltyMaxMs = c.PenaltyStepMs - 1 }, true},
		{"zero caps allowed", func(c *store.ThrottleConfig) { c.DailyCap = 0; c.HourlyCap = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetConfig_RejectsInvalidWithoutPersisting(t *testing.T) {
	tr, ts, _, _ := newTestThrottle(DefaultConfig(), fixedNow())

	bad := DefaultConfig()
	bad.MaxDelayMs = 100 // below min
	if err := tr.SetConfig(context.Background(), bad); err == nil {
		t.Fatal("expected validation error")
	}
	if ts.cfg.MaxDelayMs == 100 {
		t.Error("invalid config must not be persisted")
	}
}

func TestConfig_FallsBackToDefaults(t *testing.T) {
	ts := &fakeThrottleStore{} // nothing stored
	tr := New(ts, newFakeCounterStore(), store.ThrottleConfig{}, testLogger())

	cfg := tr.Config(context.Background())
	if cfg != DefaultConfig() {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestStatus(t *testing.T) {
	now := fixedNow()
	tr, ts, cs, _ := newTestThrottle(DefaultConfig(), now)
	ts.penaltyMs = 3000
	cs.counts[store.CounterThrottleDay+"/"+store.DayPeriod(now)] = 12
	cs.counts[store.CounterThrottleHour+"/"+store.HourPeriod(now)] = 4

	st, err := tr.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.DayCount != 12 || st.HourCount != 4 || st.PenaltyMs != 3000 {
		t.Errorf("got status %+v", st)
	}
}
