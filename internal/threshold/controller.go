// Package threshold implements the self-tuning acceptance bar. A simple
// proportional controller nudges the threshold by a fixed step so the
// observed pass rate over a fixed-size sample window converges into the
// target band.
package threshold

import (
	"context"
	"log/slog"

	"listgate/internal/store"
)

// Defaults carried over from the production tuning of the source system.
const (
	DefaultThreshold = 65
	MinThreshold     = 45
	MaxThreshold     = 85

	DefaultPassRateLow  = 0.30
	DefaultPassRateHigh = 0.40
	DefaultStep         = 2
	DefaultMinSamples   = 50
)

// Config tunes the controller.
type Config struct {
	Default      float64
	Min          float64
	Max          float64
	Step         float64
	PassRateLow  float64
	PassRateHigh float64
	MinSamples   int64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Default:      DefaultThreshold,
		Min:          MinThreshold,
		Max:          MaxThreshold,
		Step:         DefaultStep,
		PassRateLow:  DefaultPassRateLow,
		PassRateHigh: DefaultPassRateHigh,
		MinSamples:   DefaultMinSamples,
	}
}

// Controller maintains the adaptive threshold against the shared store.
type Controller struct {
	store store.ThresholdStore
	cfg   Config
	log   *slog.Logger
}

// New creates a Controller.
func New(s store.ThresholdStore, cfg Config, log *slog.Logger) *Controller {
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultMinSamples
	}
	return &Controller{store: s, cfg: cfg, log: log}
}

func (c *Controller) clamp(v float64) float64 {
	if v < c.cfg.Min {
		return c.cfg.Min
	}
	if v > c.cfg.Max {
		return c.cfg.Max
	}
	return v
}

// GetThreshold returns the current clamped threshold. Store unavailability
// falls back to the configured default so scoring never blocks.
func (c *Controller) GetThreshold(ctx context.Context) float64 {
	st, err := c.store.GetThresholdState(ctx)
	if err != nil {
		c.log.Warn("threshold state unavailable, using default",
			"default", c.cfg.Default, "error", err)
		return c.clamp(c.cfg.Default)
	}
	return c.clamp(st.Threshold)
}

// RecordSample counts one scored job into the current window and returns
// the window pass rate so far.
func (c *Controller) RecordSample(ctx context.Context, passed bool) (float64, error) {
	st, err := c.store.RecordSample(ctx, passed)
	if err != nil {
		return 0, err
	}
	return st.PassRate(), nil
}

// MaybeAdjust applies at most one proportional step once the window holds
// MinSamples samples: a pass rate above the band tightens the bar, below
// loosens it. The store serializes the rollover so concurrent workers never
// double-apply a step. Returns the state and whether a step was applied.
func (c *Controller) MaybeAdjust(ctx context.Context) (*store.ThresholdState, bool, error) {
	st, adjusted, err := c.store.AdjustWindow(ctx, c.cfg.MinSamples, func(cur store.ThresholdState) float64 {
		rate := cur.PassRate()
		next := cur.Threshold
		switch {
		case rate > c.cfg.PassRateHigh:
			next = cur.Threshold + c.cfg.Step
		case rate < c.cfg.PassRateLow:
			next = cur.Threshold - c.cfg.Step
		}
		return c.clamp(next)
	})
	if err != nil {
		return nil, false, err
	}
	if adjusted {
		c.log.Info("adaptive threshold window rolled",
			"threshold", st.Threshold)
	}
	return st, adjusted, nil
}

// Reset clears the window and restores the default threshold.
func (c *Controller) Reset(ctx context.Context) (*store.ThresholdState, error) {
	return c.store.ResetThreshold(ctx, c.cfg.Default)
}

// State returns the raw threshold state for status reporting.
func (c *Controller) State(ctx context.Context) (*store.ThresholdState, error) {
	return c.store.GetThresholdState(ctx)
}
