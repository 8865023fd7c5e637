// Package store contains the shared-state layer for listgate.
package store

import (
	"encoding/json"
	"time"
)

// Job is one candidate item pulled from the admission queue.
// Identity is the stable dedup key (supplier SKU); jobs without it are
// rejected at the queue boundary and never reach a gate.
type Job struct {
	ID                  string            `json:"id"`
	Identity            string            `json:"identity"`
	Score               *float64          `json:"score,omitempty"`
	Cost                *float64          `json:"cost,omitempty"`
	CompetitorPriceHint *float64          `json:"competitorPriceHint,omitempty"`
	Attributes          map[string]string `json:"attributes,omitempty"`
}

// Classification is the permanent winner/loser state of an identity.
type Classification string

const (
	ClassUnknown Classification = "unknown"
	ClassWinner  Classification = "winner"
	ClassLoser   Classification = "loser"
)

// WinnerRecord is the permanent per-identity memory entry.
// A loser classification is terminal and never changes.
type WinnerRecord struct {
	Identity       string
	Classification Classification
	Confidence     int
	LastUpdated    time.Time
}

// ThresholdState is the process-wide adaptive acceptance bar plus the
// sampling window counters it is tuned against.
type ThresholdState struct {
	Threshold      float64
	WindowSeen     int64
	WindowPassed   int64
	LastAdjustedAt *time.Time
}

// PassRate returns the window pass rate, or 0 if the window is empty.
func (s ThresholdState) PassRate() float64 {
	if s.WindowSeen == 0 {
		return 0
	}
	return float64(s.WindowPassed) / float64(s.WindowSeen)
}

// ThrottleConfig is operator-settable pacing configuration.
type ThrottleConfig struct {
	Enabled       bool  `json:"enabled"`
	DailyCap      int64 `json:"dailyCap"`
	HourlyCap     int64 `json:"hourlyCap"`
	MinDelayMs    int64 `json:"minDelayMs"`
	MaxDelayMs    int64 `json:"maxDelayMs"`
	PenaltyStepMs int64 `json:"penaltyStepMs"`
	PenaltyMaxMs  int64 `json:"penaltyMaxMs"`
}

// ThrottleState holds the mutable pacing counters that are not period-scoped.
type ThrottleState struct {
	PenaltyMs    int64
	LastActionAt *time.Time
}

// PhaseInfo is the (phase, dailyCap) pair derived from the ramp day index.
type PhaseInfo struct {
	Phase    int   `json:"phase"`
	DailyCap int64 `json:"dailyCap"`
}

// QueueItem is a claimed entry from the admission queue.
// Attempt counts how many times the item has been claimed, including this one.
type QueueItem struct {
	QueueID int64
	Attempt int
	Payload json.RawMessage
}

// Counter names. All period-scoped counters go through these constants so
// that no component invents its own key layout.
const (
	CounterThrottleDay   = "throttle:day"
	CounterThrottleHour  = "throttle:hour"
	CounterAcceptedDay   = "ramp:accepted:day"
	CounterSalesVelocity = "sales:velocity"
)

// DayPeriod formats t as the UTC day bucket for period-scoped counters.
func DayPeriod(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// HourPeriod formats t as the UTC hour bucket for period-scoped counters.
func HourPeriod(t time.Time) string {
	return t.UTC().Format("2006-01-02T15")
}
