package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"listgate/internal/store"
	"listgate/pkg/api"
)

// maxFeedBytes bounds how much of a CSV feed body is read.
const maxFeedBytes = 32 << 20

// IngestFeed parses a CSV feed from the request body and enqueues one job
// per valid row. The "source" query parameter tags the supplier.
func (h *Handlers) IngestFeed(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "unknown"
	}

	body := http.MaxBytesReader(w, r.Body, maxFeedBytes)
	sum, err := h.deps.Ingestor.IngestCSV(r.Context(), body, source)
	if err != nil {
		h.deps.Log.Error("feed ingestion failed", "source", source, "error", err)
		h.httpError(w, "feed ingestion failed", http.StatusServiceUnavailable)
		return
	}

	h.respondJson(w, http.StatusOK, api.IngestResponse{
		Added:    sum.Added,
		Rejected: sum.Rejected,
	})
}

// EnqueueJob pushes a single candidate job onto the admission queue.
func (h *Handlers) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Identity == "" {
		h.httpError(w, "identity is required", http.StatusBadRequest)
		return
	}

	job := store.Job{
		ID:                  uuid.NewString(),
		Identity:            req.Identity,
		Score:               req.Score,
		Cost:                req.Cost,
		CompetitorPriceHint: req.CompetitorPriceHint,
		Attributes:          req.Attributes,
	}

	payload, err := json.Marshal(job)
	if err != nil {
		h.httpError(w, "failed to encode job", http.StatusInternalServerError)
		return
	}

	queueID, err := h.deps.Queue.Enqueue(r.Context(), payload, time.Time{})
	if err != nil {
		h.deps.Log.Error("enqueue failed", "identity", req.Identity, "error", err)
		h.httpError(w, "failed to enqueue job", http.StatusServiceUnavailable)
		return
	}

	h.respondJson(w, http.StatusCreated, api.EnqueueJobResponse{
		JobID:   job.ID,
		QueueID: queueID,
	})
}
