package payflow

import (
	"context"
	"time"
)

// ============================================================================
// Hook Context Types
// ============================================================================

// SimulateContext contains information passed to simulate hooks
type SimulateContext struct {
	Ctx       context.Context
	Record    TransactionRecord
	Timestamp time.Time
}

// SimulateResultContext contains a simulate operation result and context
type SimulateResultContext struct {
	SimulateContext
	Outcome  SimulationOutcome
	Duration time.Duration
}

// BroadcastContext contains information passed to broadcast hooks
type BroadcastContext struct {
	Ctx       context.Context
	Record    TransactionRecord
	Timestamp time.Time
}

// BroadcastResultContext contains a broadcast operation result and context
type BroadcastResultContext struct {
	BroadcastContext
	Result   BroadcastResponse
	Duration time.Duration
}

// BroadcastFailureContext contains a broadcast operation failure and context
type BroadcastFailureContext struct {
	BroadcastContext
	Error    error
	Duration time.Duration
}

// ============================================================================
// Hook Result Types
// ============================================================================

// BeforeHookResult represents the result of a "before" hook.
// If Abort is true, the operation is aborted with the given Reason.
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// ============================================================================
// Hook Function Types
// ============================================================================

// BeforeSimulateHook is called before an envelope is sent to the dry-run
// endpoint. If it returns a result with Abort=true the simulation is
// skipped and an error is returned with the provided reason.
type BeforeSimulateHook func(SimulateContext) (*BeforeHookResult, error)

// AfterSimulateHook is called after a completed simulation. Any error
// returned is logged but does not affect the outcome.
type AfterSimulateHook func(SimulateResultContext) error

// BeforeBroadcastHook is called before a validated envelope is submitted.
// If it returns a result with Abort=true the broadcast is aborted.
type BeforeBroadcastHook func(BroadcastContext) (*BeforeHookResult, error)

// AfterBroadcastHook is called after the network accepts a submission.
// Any error returned is logged but does not affect the result.
type AfterBroadcastHook func(BroadcastResultContext) error

// OnBroadcastFailureHook is called when a broadcast attempt fails
type OnBroadcastFailureHook func(BroadcastFailureContext) error
