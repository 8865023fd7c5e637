package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"listgate/pkg/api"
)

// EngineClient handles API calls to the listgate controller.
type EngineClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewEngineClient creates a new client with the given base URL and token.
func NewEngineClient(baseURL, token string) *EngineClient {
	return &EngineClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *EngineClient) do(method, path string, body io.Reader, out interface{}) error {
	httpReq, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

func (c *EngineClient) doJSON(method, path string, req, out interface{}) error {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(method, path, bytes.NewReader(bodyBytes), out)
}

// GetEngineStatus sends GET /api/engine/status.
func (c *EngineClient) GetEngineStatus() (*api.EngineStatusResponse, error) {
	var result api.EngineStatusResponse
	if err := c.do(http.MethodGet, "/api/engine/status", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ResetThreshold sends POST /api/engine/threshold/reset.
func (c *EngineClient) ResetThreshold() (*api.ThresholdStateResponse, error) {
	var result api.ThresholdStateResponse
	if err := c.do(http.MethodPost, "/api/engine/threshold/reset", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetThrottleStatus sends GET /api/engine/throttle/status.
func (c *EngineClient) GetThrottleStatus() (*api.ThrottleStatusResponse, error) {
	var result api.ThrottleStatusResponse
	if err := c.do(http.MethodGet, "/api/engine/throttle/status", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateThrottleConfig sends POST /api/engine/throttle/config.
func (c *EngineClient) UpdateThrottleConfig(req api.ThrottleConfigRequest) (*api.ThrottleConfigBody, error) {
	var result api.ThrottleConfigBody
	if err := c.doJSON(http.MethodPost, "/api/engine/throttle/config", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetKillSwitch sends POST /api/engine/killswitch.
func (c *EngineClient) SetKillSwitch(enabled bool) (*api.KillSwitchResponse, error) {
	var result api.KillSwitchResponse
	if err := c.doJSON(http.MethodPost, "/api/engine/killswitch", api.KillSwitchRequest{Enabled: enabled}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// IngestFeed sends POST /api/engine/ingest with a CSV body.
func (c *EngineClient) IngestFeed(feed io.Reader, source string) (*api.IngestResponse, error) {
	httpReq, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/api/engine/ingest?source=%s", c.BaseURL, source), feed)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	httpReq.Header.Add("Content-Type", "text/csv")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result api.IngestResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

// EnqueueJob sends POST /api/engine/jobs.
func (c *EngineClient) EnqueueJob(req api.EnqueueJobRequest) (*api.EnqueueJobResponse, error) {
	var result api.EnqueueJobResponse
	if err := c.doJSON(http.MethodPost, "/api/engine/jobs", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendSaleFeedback sends POST /api/feedback/sale.
func (c *EngineClient) SendSaleFeedback(req api.SaleFeedbackRequest) (*api.SaleFeedbackResponse, error) {
	var result api.SaleFeedbackResponse
	if err := c.doJSON(http.MethodPost, "/api/feedback/sale", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
