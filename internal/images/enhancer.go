// Package images is the optional image-enhancement call-out for accepted
// jobs. It is disabled unless a provider URL is configured; every path
// returns a normalized Result so downstream dispatch never branches on
// provider quirks.
package images

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"listgate/internal/store"
)

const maxPromptTitle = 180

// Result is the normalized outcome of an enhancement request.
type Result struct {
	OK       bool     `json:"ok"`
	Skipped  bool     `json:"skipped"`
	Images   []string `json:"images"`
	Reason   string   `json:"reason,omitempty"`
	Provider string   `json:"provider,omitempty"`
}

// Enhancer requests enhanced product images for a job.
type Enhancer interface {
	Enhance(ctx context.Context, job store.Job) Result
}

// Disabled is the no-provider Enhancer; it always skips.
type Disabled struct{}

func (Disabled) Enhance(ctx context.Context, job store.Job) Result {
	return Result{Skipped: true, Images: []string{}, Reason: "disabled"}
}

// HTTPEnhancer calls an external image provider over HTTP.
type HTTPEnhancer struct {
	url        string
	provider   string
	httpClient *http.Client
}

// NewHTTP creates an HTTPEnhancer with a bounded request timeout.
func NewHTTP(url, provider string, timeout time.Duration) *HTTPEnhancer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEnhancer{
		url:      url,
		provider: provider,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var whitespace = regexp.MustCompile(`\s+`)

func cleanText(s string) string {
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if len(s) > maxPromptTitle {
		s = s[:maxPromptTitle]
	}
	return s
}

// buildPrompt produces a brand-safe prompt for the provider.
func buildPrompt(job store.Job) string {
	title := cleanText(job.Attributes["title"])
	if title == "" {
		title = "Product"
	}
	return strings.Join([]string{
		"Create a high-quality e-commerce product image.",
		"Pure white background, soft natural shadow, sharp focus, realistic lighting.",
		"NO logos, NO brand names, NO trademarked elements, NO text overlays, NO watermarks.",
		"Centered composition, professional studio photo style.",
		"Product: " + title,
	}, " ")
}

type enhanceRequest struct {
	Identity string `json:"identity"`
	Prompt   string `json:"prompt"`
}

// Enhance posts the prompt to the provider and tolerantly parses the common
// response shapes. Failures are reported in the Result, never as errors;
// the caller decides whether a failed enhancement blocks dispatch.
func (e *HTTPEnhancer) Enhance(ctx context.Context, job store.Job) Result {
	body, err := json.Marshal(enhanceRequest{
		Identity: job.Identity,
		Prompt:   buildPrompt(job),
	})
	if err != nil {
		return Result{Reason: fmt.Sprintf("marshal: %v", err), Images: []string{}, Provider: e.provider}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return Result{Reason: fmt.Sprintf("request: %v", err), Images: []string{}, Provider: e.provider}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return Result{Reason: fmt.Sprintf("provider unreachable: %v", err), Images: []string{}, Provider: e.provider}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Reason: fmt.Sprintf("provider status %d", resp.StatusCode), Images: []string{}, Provider: e.provider}
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{Reason: fmt.Sprintf("decode: %v", err), Images: []string{}, Provider: e.provider}
	}

	images := extractImages(payload)
	return Result{
		OK:       len(images) > 0,
		Images:   images,
		Provider: e.provider,
	}
}

// extractImages handles the response layouts seen across providers:
// {images: [...]}, {output: [...]}, {data: [...]}, {result: {images: [...]}}.
func extractImages(payload map[string]json.RawMessage) []string {
	for _, key := range []string{"images", "output", "data"} {
		if raw, ok := payload[key]; ok {
			if imgs := decodeStrings(raw); len(imgs) > 0 {
				return imgs
			}
		}
	}
	if raw, ok := payload["result"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err == nil {
			if inner, ok := nested["images"]; ok {
				return decodeStrings(inner)
			}
		}
	}
	return []string{}
}

func decodeStrings(raw json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	out := list[:0]
	for _, s := range list {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
