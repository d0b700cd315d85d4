// Package http provides the HTTP transport boundary: the outbound
// settlement-network client and the inbound webhook server.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	payflow "github.com/lumenpay/payflow"
)

// SettlementHTTPClient talks to the settlement network's simulate and
// submit endpoints. Implements payflow.SettlementClient.
type SettlementHTTPClient struct {
	url        string
	httpClient *http.Client
}

// SettlementConfig configures the settlement HTTP client
type SettlementConfig struct {
	// URL is the base URL of the settlement network gateway
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration
}

// NewSettlementHTTPClient creates a new settlement network client
func NewSettlementHTTPClient(config *SettlementConfig) *SettlementHTTPClient {
	if config == nil {
		config = &SettlementConfig{}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	return &SettlementHTTPClient{
		url:        config.URL,
		httpClient: httpClient,
	}
}

type envelopeRequest struct {
	Envelope string `json:"envelope"`
}

// Simulate calls the network's dry-run endpoint with the envelope.
// Transport failures come back as plain errors; the gateway layer maps
// them to gateway_unavailable.
func (c *SettlementHTTPClient) Simulate(ctx context.Context, envelope string) (*payflow.SimulationOutcome, error) {
	body, err := json.Marshal(envelopeRequest{Envelope: envelope})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal simulate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/simulate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create simulate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("simulate request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("simulate failed (%d): %s", resp.StatusCode, string(responseBody))
	}

	var outcome payflow.SimulationOutcome
	if err := json.Unmarshal(responseBody, &outcome); err != nil {
		return nil, fmt.Errorf("failed to decode simulate response: %w", err)
	}
	return &outcome, nil
}

// Submit broadcasts the envelope for actual settlement. Any error after
// the request was sent is ambiguous; the broadcast controller treats it
// as such and never assumes success.
func (c *SettlementHTTPClient) Submit(ctx context.Context, envelope string) (*payflow.BroadcastResponse, error) {
	body, err := json.Marshal(envelopeRequest{Envelope: envelope})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/submit", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("submit failed (%d): %s", resp.StatusCode, string(responseBody))
	}

	var broadcast payflow.BroadcastResponse
	if err := json.Unmarshal(responseBody, &broadcast); err != nil {
		return nil, fmt.Errorf("failed to decode submit response: %w", err)
	}
	if broadcast.SubmittedAt.IsZero() {
		broadcast.SubmittedAt = time.Now().UTC()
	}
	return &broadcast, nil
}

var _ payflow.SettlementClient = (*SettlementHTTPClient)(nil)
