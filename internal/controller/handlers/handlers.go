// Package handlers contains HTTP handlers for the controller API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"listgate/internal/ingest"
	"listgate/internal/memory"
	"listgate/internal/ramp"
	"listgate/internal/store"
	"listgate/internal/threshold"
	"listgate/internal/throttle"
	"listgate/pkg/api"
)

// Pinger reports backing-store connectivity for readiness probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds everything the controller handlers need.
type Deps struct {
	Threshold *threshold.Controller
	Throttle  *throttle.Throttle
	Ramp      *ramp.Scheduler
	Memory    *memory.Memory
	Ingestor  *ingest.Ingestor
	Queue     store.Queue
	Switches  store.SwitchStore
	Counters  store.CounterStore
	Pinger    Pinger
	Log       *slog.Logger
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	deps Deps
}

// New creates a new Handlers instance.
func New(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}
