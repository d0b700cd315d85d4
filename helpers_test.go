package payflow_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	payflow "github.com/lumenpay/payflow"
	"github.com/lumenpay/payflow/storage"
)

const testProvider = "stellarx"
const testSecret = "wh-secret"

// fakeSettlementClient is a deterministic stand-in for the settlement
// network, substituted through the SettlementClient capability.
type fakeSettlementClient struct {
	mu sync.Mutex

	simulateOutcome *payflow.SimulationOutcome
	simulateErr     error

	// When set, Simulate signals simulateEnter on arrival and then
	// blocks until simulateGate closes, letting tests interleave other
	// operations with an in-flight simulation.
	simulateEnter chan struct{}
	simulateGate  chan struct{}

	submitResp  *payflow.BroadcastResponse
	submitErr   error
	submitDelay time.Duration

	simulateCalls int
	submitCalls   int
}

func (f *fakeSettlementClient) Simulate(ctx context.Context, envelope string) (*payflow.SimulationOutcome, error) {
	f.mu.Lock()
	f.simulateCalls++
	outcome, err := f.simulateOutcome, f.simulateErr
	enter, gate := f.simulateEnter, f.simulateGate
	f.mu.Unlock()

	if enter != nil {
		enter <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	copied := *outcome
	return &copied, nil
}

func (f *fakeSettlementClient) Submit(ctx context.Context, envelope string) (*payflow.BroadcastResponse, error) {
	f.mu.Lock()
	f.submitCalls++
	resp, err, delay := f.submitResp, f.submitErr, f.submitDelay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	copied := *resp
	return &copied, nil
}

func (f *fakeSettlementClient) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.simulateCalls, f.submitCalls
}

// faultyStore injects a Get failure to exercise the transient-storage
// error paths.
type faultyStore struct {
	*storage.MemoryStore
	getErr error
}

func (s *faultyStore) Get(ctx context.Context, id string) (*payflow.TransactionRecord, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.Get(ctx, id)
}

func newTestOrchestrator(t *testing.T, client payflow.SettlementClient) (*payflow.Orchestrator, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	orch := payflow.NewOrchestrator(payflow.OrchestratorConfig{
		Store:    store,
		Client:   client,
		Verifier: payflow.NewHMACVerifier(map[string]string{testProvider: testSecret}),
		Logger:   slog.Default(),
	})
	return orch, store
}

// signedEvent builds a webhook event carrying a valid signature for the
// test provider.
func signedEvent(eventID, txID string, status payflow.WebhookStatus) payflow.WebhookEvent {
	event := payflow.WebhookEvent{
		ID:            eventID,
		TransactionID: txID,
		Status:        status,
	}
	event.Signature = payflow.SignEvent(testSecret, event)
	return event
}

// validatedRecord drives a fresh draft through a successful simulation.
func validatedRecord(t *testing.T, orch *payflow.Orchestrator, client *fakeSettlementClient) *payflow.TransactionRecord {
	t.Helper()
	client.mu.Lock()
	client.simulateOutcome = &payflow.SimulationOutcome{Success: true}
	client.simulateErr = nil
	client.mu.Unlock()

	ctx := context.Background()
	record, err := orch.CreateDraft(ctx, "AAAA-signed-blob")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if _, err := orch.Simulate(ctx, record.ID); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	record, err = orch.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return record
}
