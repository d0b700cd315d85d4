package payflow

import (
	"fmt"
	"time"
)

// Event is a lifecycle event applied to a transaction record
type Event string

const (
	EventSimulateStarted    Event = "simulate_started"
	EventSimulateSucceeded  Event = "simulate_succeeded"
	EventSimulateFailed     Event = "simulate_failed"
	EventFieldsEdited       Event = "fields_edited"
	EventBroadcastRequested Event = "broadcast_requested"
	EventBroadcastErrored   Event = "broadcast_errored"
	EventConfirmed          Event = "confirmed"
	EventFailed             Event = "failed"
)

// transitions is the full legality table. Any (state, event) pair not
// listed here is rejected.
var transitions = map[State]map[Event]State{
	StateDraft: {
		EventSimulateStarted: StateSimulating,
		EventFieldsEdited:    StateDraft,
	},
	StateSimulating: {
		// A simulate outcome only lands while the record is still
		// Simulating. If an edit moved it back to Draft mid-flight, the
		// outcome belongs to the old envelope and must not apply.
		EventSimulateSucceeded: StateValidated,
		EventSimulateFailed:    StateRejected,
		EventFieldsEdited:      StateDraft,
	},
	StateValidated: {
		EventFieldsEdited:       StateDraft,
		EventBroadcastRequested: StateBroadcasting,
	},
	StateRejected: {
		// Operator-correctable path: editing the form reopens the draft
		EventFieldsEdited: StateDraft,
	},
	StateBroadcasting: {
		EventConfirmed:        StateConfirmed,
		EventFailed:           StateFailed,
		EventBroadcastErrored: StateValidated,
	},
}

// Transition applies event to a copy of record and returns the updated
// record. Illegal events fail with an invalid_transition FlowError;
// events against Confirmed or Failed fail with terminal_state_violation.
// The input record is never mutated.
func Transition(record *TransactionRecord, event Event) (*TransactionRecord, error) {
	if record == nil {
		return nil, NewFlowError(ErrCodeInvalidTransition, "nil record", nil)
	}

	next, ok := transitions[record.State][event]
	if !ok {
		code := ErrCodeInvalidTransition
		if record.State.Terminal() {
			code = ErrCodeTerminalState
		}
		return nil, NewFlowError(code,
			fmt.Sprintf("event %s not legal in state %s", event, record.State),
			map[string]interface{}{"id": record.ID, "state": string(record.State), "event": string(event)})
	}

	now := time.Now().UTC()
	out := record.Clone()
	out.State = next
	out.UpdatedAt = now

	switch event {
	case EventFieldsEdited:
		// A stale simulation must never gate a broadcast
		out.SimulationResult = nil
	case EventBroadcastRequested:
		if out.BroadcastAttemptedAt == nil {
			out.BroadcastAttemptedAt = &now
		}
	case EventConfirmed:
		if out.ConfirmedAt == nil {
			out.ConfirmedAt = &now
		}
	}

	return out, nil
}

// CanBroadcast is the single source of truth for "may this be broadcast".
// The record must be Validated with a fresh, successful simulation.
func CanBroadcast(record *TransactionRecord) bool {
	return record != nil &&
		record.State == StateValidated &&
		record.SimulationResult != nil &&
		record.SimulationResult.Success
}
