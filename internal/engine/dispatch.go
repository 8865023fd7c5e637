package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"listgate/internal/images"
	"listgate/internal/pricing"
	"listgate/internal/store"
)

// Listing is an accepted job plus its phase-gated annotations, handed to
// the downstream publishing collaborator.
type Listing struct {
	Job         store.Job       `json:"job"`
	Score       float64         `json:"score"`
	Phase       store.PhaseInfo `json:"phase"`
	TargetPrice *float64        `json:"targetPrice,omitempty"`
	Repricing   *pricing.Quote  `json:"repricing,omitempty"`
	Images      *images.Result  `json:"images,omitempty"`
	AcceptedAt  time.Time       `json:"acceptedAt"`
}

// Publisher forwards accepted listings downstream.
type Publisher interface {
	Publish(ctx context.Context, listing *Listing) error
}

// HTTPPublisher posts listings to an external publishing endpoint.
type HTTPPublisher struct {
	url        string
	httpClient *http.Client
}

// NewHTTPPublisher creates a publisher with a bounded request timeout.
func NewHTTPPublisher(url string, timeout time.Duration) *HTTPPublisher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPPublisher{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Publish sends the listing as JSON. Any non-2xx response is an error so
// the caller can apply the throttle penalty and bounded requeue.
func (p *HTTPPublisher) Publish(ctx context.Context, listing *Listing) error {
	body, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to marshal listing: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("publish request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("publisher returned status %d", resp.StatusCode)
	}
	return nil
}

// LogPublisher is the default collaborator when no publish URL is
// configured; it records the listing and succeeds.
type LogPublisher struct {
	Log *slog.Logger
}

func (p *LogPublisher) Publish(ctx context.Context, listing *Listing) error {
	p.Log.Info("listing ready for publishing pipeline",
		"identity", listing.Job.Identity,
		"score", listing.Score,
		"phase", listing.Phase.Phase,
		"targetPrice", listing.TargetPrice)
	return nil
}
