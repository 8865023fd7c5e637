// Package ramp maps a persisted day index to a (phase, dailyCap) pair,
// capping daily throughput and progressively enabling downstream features.
package ramp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"listgate/internal/store"
)

// Feature gate phases.
const (
	RepricingPhase    = 2
	ImageEnhancePhase = 3
)

const acceptedCounterTTL = 48 * time.Hour

// Entry is one row of the ramp table: day indexes up to and including
// DayThreshold map to (Phase, DailyCap).
type Entry struct {
	DayThreshold int
	Phase        int
	DailyCap     int64
}

// DefaultTable is the production ramp: 20/day on day one up to a steady
// state of 300/day after two months.
func DefaultTable() []Entry {
	return []Entry{
		{DayThreshold: 3, Phase: 0, DailyCap: 20},
		{DayThreshold: 10, Phase: 1, DailyCap: 50},
		{DayThreshold: 20, Phase: 2, DailyCap: 100},
		{DayThreshold: 30, Phase: 3, DailyCap: 160},
		{DayThreshold: 60, Phase: 4, DailyCap: 200},
	}
}

// DefaultSteadyState applies once the day index is past the last table row.
var DefaultSteadyState = store.PhaseInfo{Phase: 5, DailyCap: 300}

// Scheduler derives the current phase from the UTC calendar distance to a
// persisted start date. The day index is idempotent: restarts and multiple
// workers all compute the same value, and the ramp advances exactly one day
// per real day.
type Scheduler struct {
	ramp     store.RampStore
	counters store.CounterStore
	table    []Entry
	steady   store.PhaseInfo
	now      func() time.Time
	log      *slog.Logger
}

// New creates a Scheduler. A nil table uses the defaults.
func New(r store.RampStore, c store.CounterStore, table []Entry, steady store.PhaseInfo, log *slog.Logger) *Scheduler {
	if len(table) == 0 {
		table = DefaultTable()
		steady = DefaultSteadyState
	}
	sort.Slice(table, func(i, j int) bool { return table[i].DayThreshold < table[j].DayThreshold })
	return &Scheduler{
		ramp:     r,
		counters: c,
		table:    table,
		steady:   steady,
		now:      time.Now,
		log:      log,
	}
}

// DayIndex returns the 1-based ramp day. Day one is the first UTC day the
// engine ever ran.
func (s *Scheduler) DayIndex(ctx context.Context) (int, error) {
	today := s.now().UTC()
	start, err := s.ramp.EnsureRampStart(ctx, store.DayPeriod(today))
	if err != nil {
		return 0, err
	}

	startDay, err := time.Parse("2006-01-02", start)
	if err != nil {
		return 0, fmt.Errorf("corrupt ramp start date %q: %w", start, err)
	}

	days := int(today.Sub(startDay).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	return days, nil
}

// GetPhase maps the day index through the ramp table. Past the last row the
// ramp holds its steady state.
func (s *Scheduler) GetPhase(ctx context.Context) (store.PhaseInfo, error) {
	day, err := s.DayIndex(ctx)
	if err != nil {
		return store.PhaseInfo{}, err
	}
	return s.phaseForDay(day), nil
}

func (s *Scheduler) phaseForDay(day int) store.PhaseInfo {
	for _, e := range s.table {
		if day <= e.DayThreshold {
			return store.PhaseInfo{Phase: e.Phase, DailyCap: e.DailyCap}
		}
	}
	return s.steady
}

// AcceptedToday returns how many jobs were accepted during the current UTC day.
func (s *Scheduler) AcceptedToday(ctx context.Context) (int64, error) {
	return s.counters.GetCounter(ctx, store.CounterAcceptedDay, store.DayPeriod(s.now()))
}

// ConsumeAccepted counts one accepted job against today's cap and returns
// the new count. The counter expires well after the day it covers.
func (s *Scheduler) ConsumeAccepted(ctx context.Context) (int64, error) {
	return s.counters.IncrCounter(ctx, store.CounterAcceptedDay, store.DayPeriod(s.now()), acceptedCounterTTL)
}

// Reset restarts the ramp from today.
func (s *Scheduler) Reset(ctx context.Context) error {
	if err := s.ramp.ResetRampStart(ctx, store.DayPeriod(s.now())); err != nil {
		return err
	}
	s.log.Info("ramp start reset")
	return nil
}

// RepricingEnabled reports whether the repricing annotation is active.
func RepricingEnabled(p store.PhaseInfo) bool {
	return p.Phase >= RepricingPhase
}

// ImageEnhanceEnabled reports whether the image-enhancement call-out is active.
func ImageEnhanceEnabled(p store.PhaseInfo) bool {
	return p.Phase >= ImageEnhancePhase
}
