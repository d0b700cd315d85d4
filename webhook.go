package payflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// IngestResult reports what happened to an accepted delivery. Every
// verified event is acknowledged; Applied tells apart a real transition
// from an absorbed duplicate or late delivery.
type IngestResult struct {
	Applied bool
	State   State
}

// WebhookIngestor processes confirmation events pushed by the settlement
// network. Delivery is at-least-once and may be out of order, so the
// ingestor verifies, deduplicates, and absorbs anything that cannot
// legally move the record.
type WebhookIngestor struct {
	store    RecordStore
	verifier SignatureVerifier
	locks    *recordLocks
	notifier Notifier
	log      *slog.Logger
}

func newWebhookIngestor(store RecordStore, verifier SignatureVerifier, locks *recordLocks, notifier Notifier, log *slog.Logger) *WebhookIngestor {
	return &WebhookIngestor{
		store:    store,
		verifier: verifier,
		locks:    locks,
		notifier: notifier,
		log:      log,
	}
}

// Ingest drives one confirmation event through verification,
// deduplication, and the lifecycle state machine.
//
// Unverifiable events fail with unverified_source and unknown ids with
// unknown_transaction; both are acknowledged upstream without acting so
// a hostile or misconfigured sender is never induced into a retry
// storm. The state update and the event id recording persist in a
// single write under the per-id lock, so a replay after a crash can at
// worst repeat the acknowledgment.
func (w *WebhookIngestor) Ingest(ctx context.Context, provider string, event WebhookEvent) (*IngestResult, error) {
	if !w.verifier.VerifyEvent(provider, event) {
		w.log.Warn("rejected unverifiable webhook event",
			"provider", provider, "eventId", event.ID)
		return nil, NewFlowError(ErrCodeUnverifiedSource,
			"event signature did not verify",
			map[string]interface{}{"provider": provider, "eventId": event.ID})
	}

	unlock := w.locks.acquire(event.TransactionID)
	defer unlock()

	record, err := w.store.Get(ctx, event.TransactionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Tolerates events for records this instance never created,
			// e.g. after a restart against stale storage.
			return nil, NewFlowError(ErrCodeUnknownTransaction,
				"no record for transaction",
				map[string]interface{}{"transactionId": event.TransactionID, "eventId": event.ID})
		}
		// Transient storage trouble is not an ingestion anomaly: surface
		// it so the at-least-once sender redelivers.
		return nil, fmt.Errorf("load record for webhook: %w", err)
	}

	// Idempotent replay: same event id seen last time, acknowledge and
	// return without a transition.
	if event.ID != "" && event.ID == record.LastWebhookEventID {
		return &IngestResult{Applied: false, State: record.State}, nil
	}

	lifecycleEvent := EventFailed
	if event.Status == WebhookStatusConfirmed {
		lifecycleEvent = EventConfirmed
	}

	next, err := Transition(record, lifecycleEvent)
	if err != nil {
		// Duplicate or out-of-order confirmation against a terminal
		// record is not a failure: the first-applied terminal state
		// wins and the event is acknowledged as a no-op.
		if IsCode(err, ErrCodeTerminalState) {
			w.log.Info("absorbed event for terminal record",
				"id", record.ID, "state", record.State, "eventId", event.ID)
			return &IngestResult{Applied: false, State: record.State}, nil
		}
		return nil, err
	}

	next.LastWebhookEventID = event.ID
	if err := w.store.Put(ctx, next); err != nil {
		return nil, err
	}

	w.log.Info("webhook applied", "id", next.ID, "state", next.State, "eventId", event.ID)
	if w.notifier != nil {
		w.notifier.Notify(ctx, fmt.Sprintf("transaction %s %s", next.ID, next.State))
	}
	return &IngestResult{Applied: true, State: next.State}, nil
}
