// Package scoring provides the fallback candidate scorer used when a feed
// supplies no upstream score. It produces a 0-100 quality score from cheap
// heuristics on the normalized job attributes.
package scoring

import (
	"strconv"
	"strings"

	"listgate/internal/store"
)

var goodKeywords = []string{"fast", "charger", "usb", "holder", "mount", "wireless", "led", "kit", "premium"}

var badKeywords = []string{"broken", "damaged", "used", "spares", "parts", "for repair"}

// Score rates a candidate job between 0 and 100.
func Score(job store.Job) float64 {
	title := strings.TrimSpace(job.Attributes["title"])
	supplier := strings.ToLower(job.Attributes["supplier"])
	price := priceOf(job)

	score := 0.0

	// Title quality: length plus keyword hits.
	if len(title) >= 20 {
		score += 15
	}
	if len(title) >= 35 {
		score += 10
	}

	t := strings.ToLower(title)
	goodHits := 0.0
	for _, k := range goodKeywords {
		if strings.Contains(t, k) {
			goodHits++
		}
	}
	badHits := 0.0
	for _, k := range badKeywords {
		if strings.Contains(t, k) {
			badHits++
		}
	}
	score += clamp(goodHits*4, 0, 16)
	score -= clamp(badHits*10, 0, 30)

	// Price band: mid-range items are the safest early winners.
	switch {
	case price > 0 && price <= 8:
		score += 8
	case price > 8 && price <= 25:
		score += 15
	case price > 25 && price <= 60:
		score += 10
	case price > 60:
		score += 4
	}

	// Supplier trust hint.
	if strings.Contains(supplier, "autods") {
		score += 5
	}
	if supplier == "" || strings.Contains(supplier, "unknown") {
		score -= 3
	}

	// Anti-junk floors.
	if title == "" {
		score = 0
	}
	if price <= 0 {
		score -= 25
	}

	return clamp(score, 0, 100)
}

func priceOf(job store.Job) float64 {
	if raw, ok := job.Attributes["price"]; ok {
		if p, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return p
		}
	}
	if job.Cost != nil {
		return *job.Cost
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
