package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payflow "github.com/lumenpay/payflow"
)

func TestSettlementHTTPClient_Simulate(t *testing.T) {
	var gotPath, gotEnvelope string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req envelopeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotEnvelope = req.Envelope

		json.NewEncoder(w).Encode(payflow.SimulationOutcome{
			Success:       true,
			Preconditions: &payflow.Preconditions{MinFee: "100"},
		})
	}))
	defer server.Close()

	client := NewSettlementHTTPClient(&SettlementConfig{URL: server.URL})
	outcome, err := client.Simulate(context.Background(), "AAAA-signed-blob")
	require.NoError(t, err)

	assert.Equal(t, "/simulate", gotPath)
	assert.Equal(t, "AAAA-signed-blob", gotEnvelope)
	assert.True(t, outcome.Success)
	require.NotNil(t, outcome.Preconditions)
	assert.Equal(t, "100", outcome.Preconditions.MinFee)
}

func TestSettlementHTTPClient_SimulateRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(payflow.SimulationOutcome{
			Success: false,
			Reason:  payflow.ReasonInsufficientBalance,
		})
	}))
	defer server.Close()

	client := NewSettlementHTTPClient(&SettlementConfig{URL: server.URL})
	outcome, err := client.Simulate(context.Background(), "AAAA-signed-blob")
	require.NoError(t, err, "a rejection is a successful dry-run, not a transport error")
	assert.False(t, outcome.Success)
	assert.Equal(t, payflow.ReasonInsufficientBalance, outcome.Reason)
}

func TestSettlementHTTPClient_SimulateNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewSettlementHTTPClient(&SettlementConfig{URL: server.URL})
	_, err := client.Simulate(context.Background(), "AAAA-signed-blob")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestSettlementHTTPClient_Submit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/submit", r.URL.Path)
		json.NewEncoder(w).Encode(payflow.BroadcastResponse{Accepted: true})
	}))
	defer server.Close()

	client := NewSettlementHTTPClient(&SettlementConfig{URL: server.URL})
	resp, err := client.Submit(context.Background(), "AAAA-signed-blob")
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.False(t, resp.SubmittedAt.IsZero(), "missing timestamp is filled in")
}

func TestSettlementHTTPClient_SubmitTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := NewSettlementHTTPClient(&SettlementConfig{URL: server.URL})
	_, err := client.Submit(context.Background(), "AAAA-signed-blob")
	require.Error(t, err)
}
