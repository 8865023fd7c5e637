// Package ingest normalizes supplier CSV feeds into typed Job records at
// the queue boundary. Rows that fail normalization are rejected here and
// never reach the admission gates.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"listgate/internal/store"

	"github.com/google/uuid"

	"encoding/json"
)

// Header names recognized in supplier feeds, matched case-insensitively.
// Everything else lands in Job.Attributes untouched.
const (
	colIdentity   = "sku"
	colTitle      = "title"
	colPrice      = "price"
	colCost       = "cost"
	colScore      = "score"
	colCompetitor = "competitorprice"
)

// Summary reports the outcome of one feed ingestion.
type Summary struct {
	Added    int `json:"added"`
	Rejected int `json:"rejected"`
}

// Ingestor enqueues normalized jobs. The fold over rows is strictly
// sequential so the reported counts always match actual store mutations.
type Ingestor struct {
	queue store.Queue
	log   *slog.Logger
}

// New creates an Ingestor.
func New(q store.Queue, log *slog.Logger) *Ingestor {
	return &Ingestor{queue: q, log: log}
}

// IngestCSV parses a supplier CSV feed and enqueues one job per valid row.
// The first record is the header. Returns the counts and the first
// infrastructure error; a store failure stops the fold so Added stays exact.
func (i *Ingestor) IngestCSV(ctx context.Context, r io.Reader, source string) (Summary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read feed header: %w", err)
	}
	cols := make([]string, len(header))
	for n, h := range header {
		cols[n] = strings.ToLower(strings.TrimSpace(h))
	}

	var sum Summary
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed row is rejected; the rest of the feed still counts.
			sum.Rejected++
			i.log.Warn("rejected malformed feed row", "source", source, "error", err)
			continue
		}

		job, ok := normalizeRow(cols, record, source)
		if !ok {
			sum.Rejected++
			continue
		}

		payload, err := json.Marshal(job)
		if err != nil {
			sum.Rejected++
			i.log.Warn("rejected unencodable feed row", "source", source, "error", err)
			continue
		}

		if _, err := i.queue.Enqueue(ctx, payload, time.Time{}); err != nil {
			return sum, fmt.Errorf("enqueue failed after %d jobs: %w", sum.Added, err)
		}
		sum.Added++
	}

	i.log.Info("feed ingested", "source", source, "added", sum.Added, "rejected", sum.Rejected)
	return sum, nil
}

// normalizeRow maps one CSV record into a typed Job. A row without an
// identity fails normalization.
func normalizeRow(cols, record []string, source string) (store.Job, bool) {
	job := store.Job{
		ID:         uuid.NewString(),
		Attributes: map[string]string{"supplier": source},
	}

	for n, col := range cols {
		if n >= len(record) {
			break
		}
		val := strings.TrimSpace(record[n])
		if val == "" {
			continue
		}
		switch col {
		case colIdentity:
			job.Identity = val
		case colScore:
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				job.Score = &f
			}
		case colCost:
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				job.Cost = &f
			}
		case colCompetitor:
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				job.CompetitorPriceHint = &f
			}
		case colTitle, colPrice:
			job.Attributes[col] = val
		default:
			job.Attributes[col] = val
		}
	}

	if job.Identity == "" {
		return store.Job{}, false
	}
	return job, true
}
