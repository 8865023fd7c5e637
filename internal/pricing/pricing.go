// Package pricing computes margin-protected price recommendations for
// accepted jobs. Pure functions, no external calls.
package pricing

import (
	"math"

	"listgate/internal/store"
)

// Params bounds how aggressively a price may move.
type Params struct {
	MinMarginPct     float64 // never price below cost * (1 + this)
	MaxIncreasePct   float64 // max move above the competitor price
	MaxDecreasePct   float64 // max move below the competitor price
	UndercutAmount   float64 // how far to slide under the competitor
	DefaultMarkupPct float64 // markup used when no competitor hint exists
	RoundDecimals    int
}

// DefaultParams returns the production tuning.
func DefaultParams() Params {
	return Params{
		MinMarginPct:     12,
		MaxIncreasePct:   8,
		MaxDecreasePct:   10,
		UndercutAmount:   0.01,
		DefaultMarkupPct: 18,
		RoundDecimals:    2,
	}
}

// Quote is a repricing recommendation attached to an accepted job.
type Quote struct {
	Enabled         bool     `json:"enabled"`
	Reason          string   `json:"reason,omitempty"`
	Mode            string   `json:"mode,omitempty"`
	Cost            float64  `json:"cost"`
	MinAllowed      float64  `json:"minAllowed"`
	BasePrice       float64  `json:"basePrice"`
	CompetitorPrice *float64 `json:"competitorPrice,omitempty"`
	TargetPrice     float64  `json:"targetPrice"`
}

// Pricing modes.
const (
	ModeMarkup      = "markup"
	ModeCompetitive = "competitive"
)

// Reprice recommends a target price for a job. With a competitor hint it
// undercuts slightly, clamped within safe bounds of the competitor; without
// one it falls back to a cost markup. The minimum margin always wins.
func Reprice(job store.Job, p Params) Quote {
	cost := 0.0
	if job.Cost != nil {
		cost = *job.Cost
	}
	if cost <= 0 {
		return Quote{Enabled: false, Reason: "missing_cost", Cost: cost}
	}

	minAllowed := round(cost*(1+p.MinMarginPct/100), p.RoundDecimals)
	base := round(cost*(1+p.DefaultMarkupPct/100), p.RoundDecimals)

	q := Quote{
		Enabled:    true,
		Mode:       ModeMarkup,
		Cost:       round(cost, p.RoundDecimals),
		MinAllowed: minAllowed,
		BasePrice:  base,
	}

	target := base
	if job.CompetitorPriceHint != nil && *job.CompetitorPriceHint > 0 {
		competitor := *job.CompetitorPriceHint
		q.Mode = ModeCompetitive
		rounded := round(competitor, p.RoundDecimals)
		q.CompetitorPrice = &rounded

		target = competitor - p.UndercutAmount
		maxUp := competitor * (1 + p.MaxIncreasePct/100)
		maxDown := competitor * (1 - p.MaxDecreasePct/100)
		target = math.Min(target, maxUp)
		target = math.Max(target, maxDown)
	}

	// The margin floor always wins over competitive positioning.
	target = math.Max(target, minAllowed)
	q.TargetPrice = round(target, p.RoundDecimals)
	return q
}

// Velocity buckets for sales feedback.
const (
	VelocityFast   = "fast"
	VelocityMedium = "medium"
	VelocitySlow   = "slow"
)

// VelocityRec recommends a price move based on how fast an item sells.
type VelocityRec struct {
	Velocity         string  `json:"velocity"`
	PercentChange    float64 `json:"percentChange"`
	RecommendedPrice float64 `json:"recommendedPrice"`
}

// VelocityBucket classifies hours-to-sale.
func VelocityBucket(hoursToSale float64) string {
	switch {
	case hoursToSale <= 24:
		return VelocityFast
	case hoursToSale <= 72:
		return VelocityMedium
	default:
		return VelocitySlow
	}
}

// RecommendVelocityAdjustment nudges a price up for fast sellers and down
// for slow ones, clamped to +/-15% of the current price.
func RecommendVelocityAdjustment(currentPrice, hoursToSale float64) VelocityRec {
	velocity := VelocityBucket(hoursToSale)

	percent := -0.07
	switch velocity {
	case VelocityFast:
		percent = 0.06
	case VelocityMedium:
		percent = 0.03
	}

	next := currentPrice * (1 + percent)
	next = math.Max(next, currentPrice*0.85)
	next = math.Min(next, currentPrice*1.15)

	return VelocityRec{
		Velocity:         velocity,
		PercentChange:    percent,
		RecommendedPrice: round(next, 2),
	}
}

func round(v float64, decimals int) float64 {
	f := math.Pow(10, float64(decimals))
	return math.Round(v*f) / f
}
