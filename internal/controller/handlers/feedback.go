package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"listgate/internal/pricing"
	"listgate/internal/store"
	"listgate/pkg/api"
)

// Confidence feedback tuning. Profitable sales boost confidence in tiers;
// a no-sale report bleeds it until the demotion floor takes over.
const (
	boostHighProfit = 15
	boostMidProfit  = 10
	boostLowProfit  = 5
	penaltyNotSold  = 5

	highProfitFloor = 10
	midProfitFloor  = 5

	velocityCounterTTL = 7 * 24 * time.Hour
)

// SaleFeedback folds a sale report into the winner ledger and, for sold
// items with a known price, recommends a velocity-based price move.
// Reports about permanent losers are acknowledged and ignored.
func (h *Handlers) SaleFeedback(w http.ResponseWriter, r *http.Request) {
	var req api.SaleFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Identity == "" {
		h.httpError(w, "identity is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	if h.deps.Memory.Classify(ctx, req.Identity) == store.ClassLoser {
		h.respondJson(w, http.StatusOK, api.SaleFeedbackResponse{
			Identity:       req.Identity,
			Classification: string(store.ClassLoser),
		})
		return
	}

	delta := -penaltyNotSold
	if req.Sold {
		switch {
		case req.Profit >= highProfitFloor:
			delta = boostHighProfit
		case req.Profit >= midProfitFloor:
			delta = boostMidProfit
		default:
			delta = boostLowProfit
		}
	}

	rec, err := h.deps.Memory.AdjustConfidence(ctx, req.Identity, delta)
	if err != nil {
		h.deps.Log.Error("sale feedback failed", "identity", req.Identity, "error", err)
		h.httpError(w, "failed to record feedback", http.StatusServiceUnavailable)
		return
	}

	resp := api.SaleFeedbackResponse{
		Identity:       req.Identity,
		Classification: string(store.ClassUnknown),
	}
	if rec != nil {
		resp.Classification = string(rec.Classification)
		conf := rec.Confidence
		resp.Confidence = &conf
	}

	if req.Sold {
		if _, err := h.deps.Counters.IncrCounter(ctx, store.CounterSalesVelocity, req.Identity, velocityCounterTTL); err != nil {
			h.deps.Log.Warn("sales velocity counter failed", "identity", req.Identity, "error", err)
		}
		if req.Price > 0 {
			v := pricing.RecommendVelocityAdjustment(req.Price, req.HoursToSale)
			resp.Velocity = v.Velocity
			resp.RecommendedPrice = &v.RecommendedPrice
		}
	}

	h.respondJson(w, http.StatusOK, resp)
}
