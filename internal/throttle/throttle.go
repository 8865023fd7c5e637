// Package throttle paces admitted actions: per-day and per-hour caps,
// randomized human-like spacing, and an error-driven penalty that decays
// gradually after successes.
package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"listgate/internal/store"
)

// Production defaults from the source system.
const (
	DefaultDailyCap      = 300
	DefaultHourlyCap     = 35
	DefaultMinDelayMs    = 6500
	DefaultMaxDelayMs    = 16000
	DefaultPenaltyStepMs = 7000
	DefaultPenaltyMaxMs  = 120000

	// Penalty decays by x0.6 per success; an error streak fades over a few
	// jobs instead of snapping back to full speed.
	decayNum = 6
	decayDen = 10

	dayCounterTTL  = 48 * time.Hour
	hourCounterTTL = 6 * time.Hour

	// Bounded wait applied when the shared store is unreachable; the
	// throttle fails open rather than blocking forever.
	degradedDelay = 5 * time.Second
)

// DefaultConfig returns the default pacing configuration.
func DefaultConfig() store.ThrottleConfig {
	return store.ThrottleConfig{
		Enabled:       true,
		DailyCap:      DefaultDailyCap,
		HourlyCap:     DefaultHourlyCap,
		MinDelayMs:    DefaultMinDelayMs,
		MaxDelayMs:    DefaultMaxDelayMs,
		PenaltyStepMs: DefaultPenaltyStepMs,
		PenaltyMaxMs:  DefaultPenaltyMaxMs,
	}
}

// WaitResult reports why and how long WaitTurn blocked.
type WaitResult struct {
	WaitedMs int64  `json:"waitedMs"`
	Reason   string `json:"reason"`
}

// Wait reasons.
const (
	ReasonDisabled  = "disabled"
	ReasonDailyCap  = "dailyCap"
	ReasonHourlyCap = "hourlyCap"
	ReasonSpacing   = "spacing"
	ReasonDegraded  = "degraded"
)

// Status is a read-only snapshot for operator visibility.
type Status struct {
	Config     store.ThrottleConfig `json:"config"`
	PenaltyMs  int64                `json:"penaltyMs"`
	DayCount   int64                `json:"dayCount"`
	HourCount  int64                `json:"hourCount"`
	LastAction *time.Time           `json:"lastAction,omitempty"`
}

// Throttle serializes and paces admitted actions against the shared store.
type Throttle struct {
	store    store.ThrottleStore
	counters store.CounterStore
	defaults store.ThrottleConfig
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	randInt  func(n int64) int64
	log      *slog.Logger
}

// New creates a Throttle with the given defaults (zero value: DefaultConfig).
func New(ts store.ThrottleStore, cs store.CounterStore, defaults store.ThrottleConfig, log *slog.Logger) *Throttle {
	if defaults == (store.ThrottleConfig{}) {
		defaults = DefaultConfig()
	}
	return &Throttle{
		store:    ts,
		counters: cs,
		defaults: defaults,
		now:      time.Now,
		sleep:    sleepCtx,
		randInt:  rand.Int63n,
		log:      log,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config returns the operator config, falling back to defaults when none
// is stored or the store is unavailable.
func (t *Throttle) Config(ctx context.Context) store.ThrottleConfig {
	cfg, err := t.store.GetThrottleConfig(ctx)
	if err != nil {
		return t.defaults
	}
	return *cfg
}

// SetConfig validates and persists a full configuration.
func (t *Throttle) SetConfig(ctx context.Context, cfg store.ThrottleConfig) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	return t.store.SetThrottleConfig(ctx, &cfg)
}

// Validate rejects out-of-range configuration with a descriptive error.
// Values are never silently clamped.
func Validate(cfg store.ThrottleConfig) error {
	if cfg.DailyCap < 0 {
		return fmt.Errorf("dailyCap must be >= 0, got %d", cfg.DailyCap)
	}
	if cfg.HourlyCap < 0 {
		return fmt.Errorf("hourlyCap must be >= 0, got %d", cfg.HourlyCap)
	}
	if cfg.MinDelayMs < 0 {
		return fmt.Errorf("minDelayMs must be >= 0, got %d", cfg.MinDelayMs)
	}
	if cfg.MaxDelayMs < cfg.MinDelayMs {
		return fmt.Errorf("maxDelayMs (%d) must be >= minDelayMs (%d)", cfg.MaxDelayMs, cfg.MinDelayMs)
	}
	if cfg.PenaltyStepMs < 0 {
		return fmt.Errorf("penaltyStepMs must be >= 0, got %d", cfg.PenaltyStepMs)
	}
	if cfg.PenaltyMaxMs < cfg.PenaltyStepMs {
		return fmt.Errorf("penaltyMaxMs (%d) must be >= penaltyStepMs (%d)", cfg.PenaltyMaxMs, cfg.PenaltyStepMs)
	}
	return nil
}

// WaitTurn blocks until this action may proceed. Day cap waits until the
// next UTC midnight, hour cap until the next hour, otherwise it enforces
// randomized spacing plus the current penalty relative to the last action.
// The last-action time is stamped before returning so a burst of callers
// cannot all compute the same wait.
func (t *Throttle) WaitTurn(ctx context.Context) (WaitResult, error) {
	cfg := t.Config(ctx)
	if !cfg.Enabled {
		return WaitResult{Reason: ReasonDisabled}, nil
	}

	now := t.now()

	dayCount, errDay := t.counters.GetCounter(ctx, store.CounterThrottleDay, store.DayPeriod(now))
	hourCount, errHour := t.counters.GetCounter(ctx, store.CounterThrottleHour, store.HourPeriod(now))
	if errDay != nil || errHour != nil {
		return t.failOpen(ctx, errDay, errHour)
	}

	if dayCount >= cfg.DailyCap {
		wait := msToNextDay(now)
		if err := t.sleep(ctx, wait); err != nil {
			return WaitResult{}, err
		}
		return WaitResult{WaitedMs: wait.Milliseconds(), Reason: ReasonDailyCap}, nil
	}

	if hourCount >= cfg.HourlyCap {
		wait := msToNextHour(now)
		if err := t.sleep(ctx, wait); err != nil {
			return WaitResult{}, err
		}
		return WaitResult{WaitedMs: wait.Milliseconds(), Reason: ReasonHourlyCap}, nil
	}

	st, err := t.store.GetThrottleState(ctx)
	if err != nil {
		return t.failOpen(ctx, err)
	}

	base := cfg.MinDelayMs
	if span := cfg.MaxDelayMs - cfg.MinDelayMs; span > 0 {
		base += t.randInt(span + 1)
	}
	target := time.Duration(base+st.PenaltyMs) * time.Millisecond

	var elapsed time.Duration
	if st.LastActionAt != nil {
		elapsed = t.now().Sub(*st.LastActionAt)
	} else {
		elapsed = target // no prior action, no wait
	}

	wait := target - elapsed
	if wait < 0 {
		wait = 0
	}
	if err := t.sleep(ctx, wait); err != nil {
		return WaitResult{}, err
	}

	if err := t.store.SetLastAction(ctx, t.now()); err != nil {
		t.log.Warn("failed to stamp last action", "error", err)
	}

	return WaitResult{WaitedMs: wait.Milliseconds(), Reason: ReasonSpacing}, nil
}

func (t *Throttle) failOpen(ctx context.Context, errs ...error) (WaitResult, error) {
	for _, err := range errs {
		if err != nil {
			t.log.Warn("throttle store unavailable, failing open with bounded delay",
				"delay", degradedDelay, "error", err)
			break
		}
	}
	if err := t.sleep(ctx, degradedDelay); err != nil {
		return WaitResult{}, err
	}
	return WaitResult{WaitedMs: degradedDelay.Milliseconds(), Reason: ReasonDegraded}, nil
}

// OnSuccess counts the completed action into the day and hour buckets and
// softly decays the penalty.
func (t *Throttle) OnSuccess(ctx context.Context) error {
	now := t.now()
	if _, err := t.counters.IncrCounter(ctx, store.CounterThrottleDay, store.DayPeriod(now), dayCounterTTL); err != nil {
		return fmt.Errorf("throttle day counter: %w", err)
	}
	if _, err := t.counters.IncrCounter(ctx, store.CounterThrottleHour, store.HourPeriod(now), hourCounterTTL); err != nil {
		return fmt.Errorf("throttle hour counter: %w", err)
	}
	if _, err := t.store.DecayPenalty(ctx, decayNum, decayDen); err != nil {
		return fmt.Errorf("throttle penalty decay: %w", err)
	}
	return nil
}

// OnError raises the penalty by one step, clamped to the ceiling.
func (t *Throttle) OnError(ctx context.Context) error {
	cfg := t.Config(ctx)
	penalty, err := t.store.AddPenalty(ctx, cfg.PenaltyStepMs, cfg.PenaltyMaxMs)
	if err != nil {
		return fmt.Errorf("throttle penalty: %w", err)
	}
	t.log.Info("throttle penalty raised", "penaltyMs", penalty)
	return nil
}

// Status returns a read-only snapshot of configuration and counters.
func (t *Throttle) Status(ctx context.Context) (Status, error) {
	cfg := t.Config(ctx)
	now := t.now()

	dayCount, err := t.counters.GetCounter(ctx, store.CounterThrottleDay, store.DayPeriod(now))
	if err != nil {
		return Status{}, err
	}
	hourCount, err := t.counters.GetCounter(ctx, store.CounterThrottleHour, store.HourPeriod(now))
	if err != nil {
		return Status{}, err
	}
	st, err := t.store.GetThrottleState(ctx)
	if err != nil {
		return Status{}, err
	}

	return Status{
		Config:     cfg,
		PenaltyMs:  st.PenaltyMs,
		DayCount:   dayCount,
		HourCount:  hourCount,
		LastAction: st.LastActionAt,
	}, nil
}

func msToNextHour(now time.Time) time.Duration {
	next := now.UTC().Truncate(time.Hour).Add(time.Hour)
	return next.Sub(now.UTC())
}

func msToNextDay(now time.Time) time.Duration {
	u := now.UTC()
	next := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return next.Sub(u)
}
