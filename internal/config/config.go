// Package config handles environment variable loading for the controller
// and the admission worker.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"listgate/internal/ramp"
	"listgate/internal/store"
	"listgate/internal/threshold"
	"listgate/internal/throttle"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database connection string
	DatabaseURL string

	// HTTP server port for the controller
	HTTPPort int

	// Bearer token guarding mutating operator endpoints
	OperatorToken string

	// OTLP collector endpoint for tracing
	OTELEndpoint string

	// Worker loop pacing
	WorkerPollInterval time.Duration
	WorkerMaxBackoff   time.Duration

	// Bounded retries per queue item
	MaxAttempts int

	// Downstream collaborators
	PublishURL      string
	PublishTimeout  time.Duration
	ImageEnhanceURL string

	// Per-source ingest rate limit (requests per second; 0 = unlimited)
	IngestRateLimit float64

	// Adaptive threshold tuning
	Threshold threshold.Config

	// Throttle defaults (operator config in the store overrides these)
	Throttle store.ThrottleConfig

	// Winner demotion floor
	DemotionFloor int

	// Phase ramp table; empty means the built-in default
	PhaseTable  []ramp.Entry
	SteadyState store.PhaseInfo
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		DatabaseURL:        dbURL,
		HTTPPort:           6161,
		OperatorToken:      os.Getenv("OPERATOR_TOKEN"),
		OTELEndpoint:       os.Getenv("OTEL_ENDPOINT"),
		WorkerPollInterval: time.Second,
		WorkerMaxBackoff:   30 * time.Second,
		MaxAttempts:        2,
		PublishURL:         os.Getenv("PUBLISH_URL"),
		PublishTimeout:     15 * time.Second,
		ImageEnhanceURL:    os.Getenv("IMAGE_ENHANCE_URL"),
		Threshold:          threshold.DefaultConfig(),
		Throttle:           throttle.DefaultConfig(),
		DemotionFloor:      30,
		SteadyState:        ramp.DefaultSteadyState,
	}

	var err error
	if cfg.HTTPPort, err = intEnv("PORT", cfg.HTTPPort); err != nil {
		return nil, err
	}
	if cfg.WorkerPollInterval, err = durationEnv("WORKER_POLL_INTERVAL", cfg.WorkerPollInterval); err != nil {
		return nil, err
	}
	if cfg.WorkerMaxBackoff, err = durationEnv("WORKER_MAX_BACKOFF", cfg.WorkerMaxBackoff); err != nil {
		return nil, err
	}
	if cfg.MaxAttempts, err = intEnv("MAX_ATTEMPTS", cfg.MaxAttempts); err != nil {
		return nil, err
	}
	if cfg.PublishTimeout, err = durationEnv("PUBLISH_TIMEOUT", cfg.PublishTimeout); err != nil {
		return nil, err
	}
	if cfg.IngestRateLimit, err = floatEnv("INGEST_RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if cfg.DemotionFloor, err = intEnv("DEMOTION_FLOOR", cfg.DemotionFloor); err != nil {
		return nil, err
	}

	if err := loadThreshold(&cfg.Threshold); err != nil {
		return nil, err
	}
	if err := loadThrottle(&cfg.Throttle); err != nil {
		return nil, err
	}
	if cfg.PhaseTable, err = parsePhaseTable(os.Getenv("PHASE_TABLE")); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadThreshold(c *threshold.Config) error {
	var err error
	if c.Default, err = floatEnv("THRESHOLD_DEFAULT", c.Default); err != nil {
		return err
	}
	if c.Min, err = floatEnv("THRESHOLD_MIN", c.Min); err != nil {
		return err
	}
	if c.Max, err = floatEnv("THRESHOLD_MAX", c.Max); err != nil {
		return err
	}
	if c.Step, err = floatEnv("THRESHOLD_STEP", c.Step); err != nil {
		return err
	}
	if c.PassRateLow, err = floatEnv("THRESHOLD_PASS_RATE_LOW", c.PassRateLow); err != nil {
		return err
	}
	if c.PassRateHigh, err = floatEnv("THRESHOLD_PASS_RATE_HIGH", c.PassRateHigh); err != nil {
		return err
	}
	minSamples, err := intEnv("THRESHOLD_MIN_SAMPLES", int(c.MinSamples))
	if err != nil {
		return err
	}
	c.MinSamples = int64(minSamples)

	if c.Min > c.Max {
		return fmt.Errorf("THRESHOLD_MIN (%v) must be <= THRESHOLD_MAX (%v)", c.Min, c.Max)
	}
	if c.PassRateLow > c.PassRateHigh {
		return fmt.Errorf("THRESHOLD_PASS_RATE_LOW (%v) must be <= THRESHOLD_PASS_RATE_HIGH (%v)", c.PassRateLow, c.PassRateHigh)
	}
	return nil
}

func loadThrottle(c *store.ThrottleConfig) error {
	if raw := os.Getenv("THROTTLE_ENABLED"); raw != "" {
		c.Enabled = raw == "1" || strings.EqualFold(raw, "true")
	}
	var err error
	if c.DailyCap, err = int64Env("THROTTLE_DAILY_CAP", c.DailyCap); err != nil {
		return err
	}
	if c.HourlyCap, err = int64Env("THROTTLE_HOURLY_CAP", c.HourlyCap); err != nil {
		return err
	}
	if c.MinDelayMs, err = int64Env("THROTTLE_MIN_DELAY_MS", c.MinDelayMs); err != nil {
		return err
	}
	if c.MaxDelayMs, err = int64Env("THROTTLE_MAX_DELAY_MS", c.MaxDelayMs); err != nil {
		return err
	}
	if c.PenaltyStepMs, err = int64Env("THROTTLE_PENALTY_STEP_MS", c.PenaltyStepMs); err != nil {
		return err
	}
	if c.PenaltyMaxMs, err = int64Env("THROTTLE_PENALTY_MAX_MS", c.PenaltyMaxMs); err != nil {
		return err
	}
	return throttle.Validate(*c)
}

// parsePhaseTable parses "dayThreshold:phase:dailyCap" triples separated by
// commas, e.g. "3:0:20,10:1:50,20:2:100". Empty input keeps the default.
func parsePhaseTable(raw string) ([]ramp.Entry, error) {
	if raw == "" {
		return nil, nil
	}

	var table []ramp.Entry
	prevCap := int64(0)
	for _, part := range strings.Split(raw, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid PHASE_TABLE entry %q, want day:phase:cap", part)
		}
		day, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("invalid PHASE_TABLE day %q: %w", fields[0], err)
		}
		phase, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("invalid PHASE_TABLE phase %q: %w", fields[1], err)
		}
		dailyCap, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid PHASE_TABLE cap %q: %w", fields[2], err)
		}
		if dailyCap < prevCap {
			return nil, fmt.Errorf("PHASE_TABLE caps must be non-decreasing, %d follows %d", dailyCap, prevCap)
		}
		prevCap = dailyCap
		table = append(table, ramp.Entry{DayThreshold: day, Phase: phase, DailyCap: dailyCap})
	}
	return table, nil
}

func intEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func int64Env(name string, def int64) (int64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func floatEnv(name string, def float64) (float64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}
