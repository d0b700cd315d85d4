package payflow

import "time"

// State is the lifecycle state of a transaction record
type State string

const (
	StateDraft        State = "draft"
	StateSimulating   State = "simulating"
	StateValidated    State = "validated"
	StateRejected     State = "rejected"
	StateBroadcasting State = "broadcasting"
	StateConfirmed    State = "confirmed"
	StateFailed       State = "failed"
)

// Terminal reports whether no settlement event may leave this state.
// Rejected is terminal for settlement events, but an operator edit
// reopens the record as a draft.
func (s State) Terminal() bool {
	switch s {
	case StateConfirmed, StateFailed, StateRejected:
		return true
	}
	return false
}

// RejectReason is a network-reported simulation problem, mapped into a
// closed set so callers never branch on free-form network strings
type RejectReason string

const (
	ReasonInsufficientBalance RejectReason = "insufficient_balance"
	ReasonInvalidSequence     RejectReason = "invalid_sequence"
	ReasonMissingTrustline    RejectReason = "missing_trustline"
	ReasonIneligibleAccount   RejectReason = "ineligible_account"
	ReasonUnknown             RejectReason = "unknown"
)

// NormalizeReason folds any network-reported reason into the closed set
func NormalizeReason(raw string) RejectReason {
	switch RejectReason(raw) {
	case ReasonInsufficientBalance, ReasonInvalidSequence, ReasonMissingTrustline, ReasonIneligibleAccount:
		return RejectReason(raw)
	}
	return ReasonUnknown
}

// Preconditions are structured requirements the network reported during
// a dry run (minimum fee, required sequence number, missing trustlines)
type Preconditions struct {
	MinFee            string   `json:"minFee,omitempty"`
	RequiredSequence  string   `json:"requiredSequence,omitempty"`
	MissingTrustlines []string `json:"missingTrustlines,omitempty"`
}

// SimulationOutcome is the result of a dry-run evaluation of an envelope
type SimulationOutcome struct {
	Success       bool           `json:"success"`
	Reason        RejectReason   `json:"reason,omitempty"`
	Preconditions *Preconditions `json:"preconditions,omitempty"`
}

// BroadcastResponse is the settlement network's answer to a submission
type BroadcastResponse struct {
	Accepted    bool      `json:"accepted"`
	SubmittedAt time.Time `json:"submittedAt,omitempty"`
}

// WebhookStatus is the settlement outcome carried by a confirmation event
type WebhookStatus string

const (
	WebhookStatusConfirmed WebhookStatus = "confirmed"
	WebhookStatusFailed    WebhookStatus = "failed"
)

// WebhookEvent is an asynchronous confirmation pushed by the settlement
// network or its intermediary. Delivery is at-least-once and may be out
// of order.
type WebhookEvent struct {
	ID            string        `json:"eventId"`
	TransactionID string        `json:"transactionId"`
	Status        WebhookStatus `json:"status"`
	Signature     string        `json:"signature"`
}

// TransactionRecord tracks one payment attempt from draft to terminal state.
// ID doubles as the idempotency key for broadcast and webhook correlation.
type TransactionRecord struct {
	ID       string `json:"id"`
	Envelope string `json:"envelope"`
	State    State  `json:"state"`

	// Last simulation outcome. Cleared whenever the underlying form
	// fields change so a stale result can never gate a broadcast.
	SimulationResult *SimulationOutcome `json:"simulationResult,omitempty"`

	// Set once, never overwritten
	BroadcastAttemptedAt *time.Time `json:"broadcastAttemptedAt,omitempty"`
	ConfirmedAt          *time.Time `json:"confirmedAt,omitempty"`

	// Last processed confirmation event id, used for deduplication
	LastWebhookEventID string `json:"lastWebhookEventId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so transitions never mutate the caller's record
func (r *TransactionRecord) Clone() *TransactionRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.SimulationResult != nil {
		sim := *r.SimulationResult
		if r.SimulationResult.Preconditions != nil {
			pre := *r.SimulationResult.Preconditions
			pre.MissingTrustlines = append([]string(nil), r.SimulationResult.Preconditions.MissingTrustlines...)
			sim.Preconditions = &pre
		}
		out.SimulationResult = &sim
	}
	if r.BroadcastAttemptedAt != nil {
		t := *r.BroadcastAttemptedAt
		out.BroadcastAttemptedAt = &t
	}
	if r.ConfirmedAt != nil {
		t := *r.ConfirmedAt
		out.ConfirmedAt = &t
	}
	return &out
}

// RecurringPayment is a template the scheduler materializes into a new
// draft once per interval
type RecurringPayment struct {
	Key      string        `json:"key"`
	Envelope string        `json:"envelope"`
	Interval time.Duration `json:"interval"`
}
