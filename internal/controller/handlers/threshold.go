package handlers

import (
	"net/http"

	"listgate/pkg/api"
)

// ResetThreshold clears the sampling window and restores the default
// threshold, returning the new state.
func (h *Handlers) ResetThreshold(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Threshold.Reset(r.Context())
	if err != nil {
		h.deps.Log.Error("threshold reset failed", "error", err)
		h.httpError(w, "threshold reset failed", http.StatusServiceUnavailable)
		return
	}

	h.deps.Log.Info("threshold reset by operator", "threshold", st.Threshold)
	h.respondJson(w, http.StatusOK, api.ThresholdStateResponse{
		Threshold: st.Threshold,
		Seen:      st.WindowSeen,
		Passed:    st.WindowPassed,
		PassRate:  st.PassRate(),
	})
}
