package handlers

import (
	"encoding/json"
	"net/http"

	"listgate/internal/store"
	"listgate/internal/throttle"
	"listgate/pkg/api"
)

// ThrottleStatus returns the read-only throttle snapshot.
func (h *Handlers) ThrottleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Throttle.Status(r.Context())
	if err != nil {
		h.httpError(w, "throttle state unavailable", http.StatusServiceUnavailable)
		return
	}
	h.respondJson(w, http.StatusOK, throttleStatusBody(st))
}

// UpdateThrottleConfig merges a partial config into the persisted one.
// Out-of-range values are rejected with a descriptive error, never
// silently clamped.
func (h *Handlers) UpdateThrottleConfig(w http.ResponseWriter, r *http.Request) {
	var req api.ThrottleConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	cfg := h.deps.Throttle.Config(r.Context())
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.DailyCap != nil {
		cfg.DailyCap = *req.DailyCap
	}
	if req.HourlyCap != nil {
		cfg.HourlyCap = *req.HourlyCap
	}
	if req.MinDelayMs != nil {
		cfg.MinDelayMs = *req.MinDelayMs
	}
	if req.MaxDelayMs != nil {
		cfg.MaxDelayMs = *req.MaxDelayMs
	}
	if req.PenaltyStepMs != nil {
		cfg.PenaltyStepMs = *req.PenaltyStepMs
	}
	if req.PenaltyMaxMs != nil {
		cfg.PenaltyMaxMs = *req.PenaltyMaxMs
	}

	if err := h.deps.Throttle.SetConfig(r.Context(), cfg); err != nil {
		if verr := throttle.Validate(cfg); verr != nil {
			h.httpError(w, verr.Error(), http.StatusBadRequest)
			return
		}
		h.deps.Log.Error("throttle config update failed", "error", err)
		h.httpError(w, "failed to persist throttle config", http.StatusServiceUnavailable)
		return
	}

	h.deps.Log.Info("throttle config updated", "dailyCap", cfg.DailyCap, "hourlyCap", cfg.HourlyCap)
	h.respondJson(w, http.StatusOK, configBody(cfg))
}

func configBody(cfg store.ThrottleConfig) api.ThrottleConfigBody {
	return api.ThrottleConfigBody{
		Enabled:       cfg.Enabled,
		DailyCap:      cfg.DailyCap,
		HourlyCap:     cfg.HourlyCap,
		MinDelayMs:    cfg.MinDelayMs,
		MaxDelayMs:    cfg.MaxDelayMs,
		PenaltyStepMs: cfg.PenaltyStepMs,
		PenaltyMaxMs:  cfg.PenaltyMaxMs,
	}
}

func throttleStatusBody(st throttle.Status) api.ThrottleStatusResponse {
	return api.ThrottleStatusResponse{
		Config:     configBody(st.Config),
		PenaltyMs:  st.PenaltyMs,
		DayCount:   st.DayCount,
		HourCount:  st.HourCount,
		LastAction: st.LastAction,
	}
}
