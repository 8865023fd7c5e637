package handlers

import (
	"net/http"

	"listgate/pkg/api"
)

// EngineStatus returns the combined operator snapshot: threshold window,
// throttle counters, phase ramp and queue depth.
func (h *Handlers) EngineStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	st, err := h.deps.Threshold.State(ctx)
	if err != nil {
		h.httpError(w, "threshold state unavailable", http.StatusServiceUnavailable)
		return
	}

	ts, err := h.deps.Throttle.Status(ctx)
	if err != nil {
		h.httpError(w, "throttle state unavailable", http.StatusServiceUnavailable)
		return
	}

	phase, err := h.deps.Ramp.GetPhase(ctx)
	if err != nil {
		h.httpError(w, "phase unavailable", http.StatusServiceUnavailable)
		return
	}
	dayIndex, err := h.deps.Ramp.DayIndex(ctx)
	if err != nil {
		h.httpError(w, "day index unavailable", http.StatusServiceUnavailable)
		return
	}
	accepted, err := h.deps.Ramp.AcceptedToday(ctx)
	if err != nil {
		h.httpError(w, "accepted count unavailable", http.StatusServiceUnavailable)
		return
	}

	depth, err := h.deps.Queue.Depth(ctx)
	if err != nil {
		h.httpError(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}

	killSwitch, err := h.deps.Switches.GetKillSwitch(ctx)
	if err != nil {
		h.httpError(w, "kill switch unavailable", http.StatusServiceUnavailable)
		return
	}

	h.respondJson(w, http.StatusOK, api.EngineStatusResponse{
		Threshold:     st.Threshold,
		Seen:          st.WindowSeen,
		Passed:        st.WindowPassed,
		PassRate:      st.PassRate(),
		DayCount:      ts.DayCount,
		HourCount:     ts.HourCount,
		PenaltyMs:     ts.PenaltyMs,
		Phase:         phase.Phase,
		DailyCap:      phase.DailyCap,
		DayIndex:      dayIndex,
		AcceptedToday: accepted,
		QueueDepth:    depth,
		KillSwitch:    killSwitch,
	})
}
