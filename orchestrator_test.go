package payflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payflow "github.com/lumenpay/payflow"
)

func TestOrchestrator_SimulateValidates(t *testing.T) {
	client := &fakeSettlementClient{
		simulateOutcome: &payflow.SimulationOutcome{
			Success:       true,
			Preconditions: &payflow.Preconditions{MinFee: "100", RequiredSequence: "4295"},
		},
	}
	orch, _ := newTestOrchestrator(t, client)
	ctx := context.Background()

	record, err := orch.CreateDraft(ctx, "AAAA-signed-blob")
	require.NoError(t, err)
	assert.Equal(t, payflow.StateDraft, record.State)
	assert.NotEmpty(t, record.ID)

	outcome, err := orch.Simulate(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Success)

	record, err = orch.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, payflow.StateValidated, record.State)
	require.NotNil(t, record.SimulationResult)
	assert.Equal(t, "100", record.SimulationResult.Preconditions.MinFee)
}

// Scenario: a draft missing a trustline is rejected with the structured
// reason, then an operator edit reopens it as a draft with no stale
// simulation result.
func TestOrchestrator_RejectionThenEdit(t *testing.T) {
	client := &fakeSettlementClient{
		simulateOutcome: &payflow.SimulationOutcome{
			Success:       false,
			Reason:        payflow.ReasonMissingTrustline,
			Preconditions: &payflow.Preconditions{MissingTrustlines: []string{"USDC"}},
		},
	}
	orch, _ := newTestOrchestrator(t, client)
	ctx := context.Background()

	record, err := orch.CreateDraft(ctx, "AAAA-signed-blob")
	require.NoError(t, err)

	outcome, err := orch.Simulate(ctx, record.ID)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, payflow.ReasonMissingTrustline, outcome.Reason)

	record, err = orch.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, payflow.StateRejected, record.State)

	// Operator edits the amount: back to draft, simulation discarded
	record, err = orch.EditFields(ctx, record.ID, "BBBB-edited-blob")
	require.NoError(t, err)
	assert.Equal(t, payflow.StateDraft, record.State)
	assert.Nil(t, record.SimulationResult)
	assert.Equal(t, "BBBB-edited-blob", record.Envelope)
}

func TestOrchestrator_GatewayUnavailableIsRetryable(t *testing.T) {
	client := &fakeSettlementClient{simulateErr: errors.New("dial tcp: connection refused")}
	orch, _ := newTestOrchestrator(t, client)
	ctx := context.Background()

	record, err := orch.CreateDraft(ctx, "AAAA-signed-blob")
	require.NoError(t, err)

	_, err = orch.Simulate(ctx, record.ID)
	require.Error(t, err)
	assert.True(t, payflow.IsCode(err, payflow.ErrCodeGatewayUnavailable))
	assert.True(t, payflow.Retryable(err))

	// The record went back to Draft, so the same action can be retried
	// without the operator touching the form.
	record, err = orch.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, payflow.StateDraft, record.State)

	client.mu.Lock()
	client.simulateErr = nil
	client.simulateOutcome = &payflow.SimulationOutcome{Success: true}
	client.mu.Unlock()

	_, err = orch.Simulate(ctx, record.ID)
	require.NoError(t, err)
	record, _ = orch.Get(ctx, record.ID)
	assert.Equal(t, payflow.StateValidated, record.State)
}

// Invalidation property: editing any form field after Validated forces
// the state back to Draft, and the stale simulation can never gate a
// broadcast.
func TestOrchestrator_EditAfterValidatedInvalidates(t *testing.T) {
	client := &fakeSettlementClient{}
	orch, _ := newTestOrchestrator(t, client)
	ctx := context.Background()

	record := validatedRecord(t, orch, client)
	assert.True(t, payflow.CanBroadcast(record))

	record, err := orch.EditFields(ctx, record.ID, "CCCC-new-amount")
	require.NoError(t, err)
	assert.Equal(t, payflow.StateDraft, record.State)
	assert.False(t, payflow.CanBroadcast(record))

	// Broadcasting the edited draft is a protocol violation
	_, err = orch.ConfirmBroadcast(ctx, record.ID)
	require.Error(t, err)
	assert.True(t, payflow.IsCode(err, payflow.ErrCodeNotValidated))
}

// An edit that lands while a simulation is in flight moves the record
// back to Draft; the outcome of the old envelope must then be discarded,
// never applied to the edited draft.
func TestOrchestrator_EditDuringSimulationDiscardsOutcome(t *testing.T) {
	client := &fakeSettlementClient{
		simulateOutcome: &payflow.SimulationOutcome{Success: true},
		simulateEnter:   make(chan struct{}, 1),
		simulateGate:    make(chan struct{}),
	}
	orch, _ := newTestOrchestrator(t, client)
	ctx := context.Background()

	record, err := orch.CreateDraft(ctx, "AAAA-old-envelope")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := orch.Simulate(ctx, record.ID)
		done <- err
	}()

	<-client.simulateEnter

	// Operator edits the form while the dry-run is still in flight
	_, err = orch.EditFields(ctx, record.ID, "BBBB-new-envelope")
	require.NoError(t, err)

	close(client.simulateGate)
	err = <-done
	require.Error(t, err)
	assert.True(t, payflow.IsCode(err, payflow.ErrCodeInvalidTransition))

	record, err = orch.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, payflow.StateDraft, record.State)
	assert.Equal(t, "BBBB-new-envelope", record.Envelope)
	assert.Nil(t, record.SimulationResult, "the old envelope's outcome must not attach to the edited draft")
	assert.False(t, payflow.CanBroadcast(record))
}

func TestOrchestrator_HooksRunAroundSimulate(t *testing.T) {
	client := &fakeSettlementClient{
		simulateOutcome: &payflow.SimulationOutcome{Success: true},
	}
	orch, _ := newTestOrchestrator(t, client)
	ctx := context.Background()

	var beforeSeen, afterSeen bool
	orch.OnBeforeSimulate(func(hc payflow.SimulateContext) (*payflow.BeforeHookResult, error) {
		beforeSeen = true
		return nil, nil
	})
	orch.OnAfterSimulate(func(rc payflow.SimulateResultContext) error {
		afterSeen = rc.Outcome.Success
		return nil
	})

	record, err := orch.CreateDraft(ctx, "AAAA-signed-blob")
	require.NoError(t, err)
	_, err = orch.Simulate(ctx, record.ID)
	require.NoError(t, err)

	assert.True(t, beforeSeen)
	assert.True(t, afterSeen)
}

func TestOrchestrator_BeforeSimulateAbortRevertsToDraft(t *testing.T) {
	client := &fakeSettlementClient{
		simulateOutcome: &payflow.SimulationOutcome{Success: true},
	}
	orch, _ := newTestOrchestrator(t, client)
	ctx := context.Background()

	orch.OnBeforeSimulate(func(hc payflow.SimulateContext) (*payflow.BeforeHookResult, error) {
		return &payflow.BeforeHookResult{Abort: true, Reason: "maintenance window"}, nil
	})

	record, err := orch.CreateDraft(ctx, "AAAA-signed-blob")
	require.NoError(t, err)
	_, err = orch.Simulate(ctx, record.ID)
	require.Error(t, err)

	record, err = orch.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, payflow.StateDraft, record.State)

	simulateCalls, _ := client.counts()
	assert.Zero(t, simulateCalls, "aborted simulation must not reach the network")
}

func TestOrchestrator_Archive(t *testing.T) {
	client := &fakeSettlementClient{}
	orch, _ := newTestOrchestrator(t, client)
	ctx := context.Background()

	record, err := orch.CreateDraft(ctx, "AAAA-signed-blob")
	require.NoError(t, err)

	require.NoError(t, orch.Archive(ctx, record.ID))
	_, err = orch.Get(ctx, record.ID)
	assert.ErrorIs(t, err, payflow.ErrNotFound)
}
