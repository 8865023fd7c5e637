package handlers

import (
	"encoding/json"
	"net/http"

	"listgate/pkg/api"
)

// SetKillSwitch pauses or resumes admission processing. Workers idle while
// the switch is engaged; queued jobs are preserved.
func (h *Handlers) SetKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req api.KillSwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := h.deps.Switches.SetKillSwitch(r.Context(), req.Enabled); err != nil {
		h.deps.Log.Error("kill switch update failed", "error", err)
		h.httpError(w, "failed to persist kill switch", http.StatusServiceUnavailable)
		return
	}

	h.deps.Log.Info("kill switch changed", "enabled", req.Enabled)
	h.respondJson(w, http.StatusOK, api.KillSwitchResponse{Enabled: req.Enabled})
}

// GetKillSwitch reports the current pause state.
func (h *Handlers) GetKillSwitch(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.deps.Switches.GetKillSwitch(r.Context())
	if err != nil {
		h.httpError(w, "kill switch unavailable", http.StatusServiceUnavailable)
		return
	}
	h.respondJson(w, http.StatusOK, api.KillSwitchResponse{Enabled: enabled})
}
