package payflow

import "context"

// SettlementClient is the outbound capability boundary to the settlement
// network. The orchestrator treats the envelope as an opaque signed blob
// it neither parses nor mutates; both calls are blocking I/O and must be
// bounded by the caller's context.
type SettlementClient interface {
	// Simulate sends the envelope to the network's dry-run endpoint.
	// Does not mutate network state. Transport failures return an error;
	// validation rejections return a non-success outcome.
	Simulate(ctx context.Context, envelope string) (*SimulationOutcome, error)

	// Submit broadcasts the envelope for actual settlement. An error
	// after the request was sent is ambiguous: the network may or may
	// not have accepted it.
	Submit(ctx context.Context, envelope string) (*BroadcastResponse, error)
}

// SignatureVerifier checks the authenticity of a pushed confirmation
// event against the provider it claims to come from
type SignatureVerifier interface {
	VerifyEvent(provider string, event WebhookEvent) bool
}

// RecordStore persists transaction records keyed by id.
// Put must be atomic per record: a reader sees either the previous or
// the new version, never a partial write.
type RecordStore interface {
	Get(ctx context.Context, id string) (*TransactionRecord, error)
	Put(ctx context.Context, record *TransactionRecord) error

	// Delete removes a record. Records are destroyed only by explicit
	// operator action or retention policy, never implicitly.
	Delete(ctx context.Context, id string) error
}

// DraftStore is the save(key, value) / load(key) contract for form
// drafts. Keys are deterministic per draft.
type DraftStore interface {
	SaveDraft(ctx context.Context, key string, value []byte) error
	LoadDraft(ctx context.Context, key string) ([]byte, error)
}

// Notifier receives human-readable status strings. The orchestrator
// never blocks on or depends on display.
type Notifier interface {
	Notify(ctx context.Context, message string)
}
