// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and Controller.
package api

import "time"

// ErrorResponse is the structured error body returned by every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// EngineStatusResponse is the operator snapshot of the admission engine.
type EngineStatusResponse struct {
	Threshold     float64 `json:"threshold"`
	Seen          int64   `json:"seen"`
	Passed        int64   `json:"passed"`
	PassRate      float64 `json:"passRate"`
	DayCount      int64   `json:"dayCount"`
	HourCount     int64   `json:"hourCount"`
	PenaltyMs     int64   `json:"penaltyMs"`
	Phase         int     `json:"phase"`
	DailyCap      int64   `json:"dailyCap"`
	DayIndex      int     `json:"dayIndex"`
	AcceptedToday int64   `json:"acceptedToday"`
	QueueDepth    int64   `json:"queueDepth"`
	KillSwitch    bool    `json:"killSwitch"`
}

// ThresholdStateResponse reports the adaptive threshold window.
type ThresholdStateResponse struct {
	Threshold float64 `json:"threshold"`
	Seen      int64   `json:"seen"`
	Passed    int64   `json:"passed"`
	PassRate  float64 `json:"passRate"`
}

// ThrottleConfigRequest is a partial update; nil fields keep their value.
type ThrottleConfigRequest struct {
	Enabled       *bool  `json:"enabled,omitempty"`
	DailyCap      *int64 `json:"dailyCap,omitempty"`
	HourlyCap     *int64 `json:"hourlyCap,omitempty"`
	MinDelayMs    *int64 `json:"minDelayMs,omitempty"`
	MaxDelayMs    *int64 `json:"maxDelayMs,omitempty"`
	PenaltyStepMs *int64 `json:"penaltyStepMs,omitempty"`
	PenaltyMaxMs  *int64 `json:"penaltyMaxMs,omitempty"`
}

// ThrottleConfigBody is the full pacing configuration.
type ThrottleConfigBody struct {
	Enabled       bool  `json:"enabled"`
	DailyCap      int64 `json:"dailyCap"`
	HourlyCap     int64 `json:"hourlyCap"`
	MinDelayMs    int64 `json:"minDelayMs"`
	MaxDelayMs    int64 `json:"maxDelayMs"`
	PenaltyStepMs int64 `json:"penaltyStepMs"`
	PenaltyMaxMs  int64 `json:"penaltyMaxMs"`
}

// ThrottleStatusResponse is the read-only throttle snapshot.
type ThrottleStatusResponse struct {
	Config     ThrottleConfigBody `json:"config"`
	PenaltyMs  int64              `json:"penaltyMs"`
	DayCount   int64              `json:"dayCount"`
	HourCount  int64              `json:"hourCount"`
	LastAction *time.Time         `json:"lastAction,omitempty"`
}

// KillSwitchRequest toggles the operator pause.
type KillSwitchRequest struct {
	Enabled bool `json:"enabled"`
}

// KillSwitchResponse confirms the new state.
type KillSwitchResponse struct {
	Enabled bool `json:"enabled"`
}

// IngestResponse reports the outcome of a feed ingestion.
type IngestResponse struct {
	Added    int `json:"added"`
	Rejected int `json:"rejected"`
}

// EnqueueJobRequest is a single candidate job pushed onto the queue.
type EnqueueJobRequest struct {
	Identity            string            `json:"identity"`
	Score               *float64          `json:"score,omitempty"`
	Cost                *float64          `json:"cost,omitempty"`
	CompetitorPriceHint *float64          `json:"competitorPriceHint,omitempty"`
	Attributes          map[string]string `json:"attributes,omitempty"`
}

// EnqueueJobResponse confirms the enqueued job.
type EnqueueJobResponse struct {
	JobID   string `json:"jobId"`
	QueueID int64  `json:"queueId"`
}

// SaleFeedbackRequest reports a sale (or the lack of one) for an identity.
type SaleFeedbackRequest struct {
	Identity    string  `json:"identity"`
	Sold        bool    `json:"sold"`
	Profit      float64 `json:"profit,omitempty"`
	HoursToSale float64 `json:"hoursToSale,omitempty"`
	Price       float64 `json:"price,omitempty"`
}

// SaleFeedbackResponse reports the memory update and, when a price was
// supplied for a sold item, a velocity-based price recommendation.
type SaleFeedbackResponse struct {
	Identity         string   `json:"identity"`
	Classification   string   `json:"classification"`
	Confidence       *int     `json:"confidence,omitempty"`
	Velocity         string   `json:"velocity,omitempty"`
	RecommendedPrice *float64 `json:"recommendedPrice,omitempty"`
}
