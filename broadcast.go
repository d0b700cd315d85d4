package payflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// BroadcastController submits a validated envelope for settlement at
// most once per record id. It holds an exclusive claim on the id while
// the outbound call is in flight; a second concurrent attempt fails
// fast with already_broadcasting instead of double-submitting.
type BroadcastController struct {
	client  SettlementClient
	store   RecordStore
	claims  *BroadcastClaims
	locks   *recordLocks
	timeout time.Duration
	log     *slog.Logger
}

// DefaultBroadcastTimeout bounds the submission call. After it fires the
// outcome is ambiguous and the record reverts to Validated.
const DefaultBroadcastTimeout = 30 * time.Second

// DefaultClaimTTL is how long an accepted response is remembered so a
// duplicate confirm returns the same answer instead of a protocol error.
const DefaultClaimTTL = 10 * time.Minute

func newBroadcastController(client SettlementClient, store RecordStore, locks *recordLocks, timeout time.Duration, log *slog.Logger) *BroadcastController {
	if timeout <= 0 {
		timeout = DefaultBroadcastTimeout
	}
	return &BroadcastController{
		client:  client,
		store:   store,
		claims:  NewBroadcastClaims(DefaultClaimTTL),
		locks:   locks,
		timeout: timeout,
		log:     log,
	}
}

// Broadcast submits the record's envelope to the settlement network.
//
// Precondition: the record is Validated with a fresh successful
// simulation; violating it is a programming error (not_validated), not
// a user-facing one. On a network error where acceptance is ambiguous
// the record reverts to Validated and the operator must re-confirm; the
// controller never assumes success.
func (b *BroadcastController) Broadcast(ctx context.Context, id string) (*BroadcastResponse, error) {
	status, cached := b.claims.Acquire(id)
	switch status {
	case ClaimSettled:
		return cached, nil
	case ClaimHeld:
		return nil, NewFlowError(ErrCodeAlreadyBroadcasting,
			"a broadcast for this record is already in flight",
			map[string]interface{}{"id": id})
	}
	// ClaimAcquired: this caller owns the submission slot

	record, err := b.markBroadcasting(ctx, id)
	if err != nil {
		b.claims.Release(id)
		return nil, err
	}

	submitCtx, cancel := context.WithTimeout(ctx, b.timeout)
	resp, submitErr := b.client.Submit(submitCtx, record.Envelope)
	cancel()

	if submitErr != nil || resp == nil || !resp.Accepted {
		// Ambiguous or rejected before acceptance: revert so the
		// operator can re-confirm. Never assume success.
		if revertErr := b.revertToValidated(ctx, id); revertErr != nil {
			b.log.Error("failed to revert record after broadcast error", "id", id, "err", revertErr)
		}
		b.claims.Release(id)

		details := map[string]interface{}{"id": id}
		if submitErr != nil {
			details["cause"] = submitErr.Error()
		}
		return nil, NewFlowError(ErrCodeNetworkError,
			"broadcast not accepted by the settlement network", details)
	}

	b.claims.Complete(id, resp)
	b.log.Info("broadcast accepted", "id", id)
	return resp, nil
}

// markBroadcasting transitions the record Validated -> Broadcasting
// under the per-id lock and persists it before any bytes go out.
func (b *BroadcastController) markBroadcasting(ctx context.Context, id string) (*TransactionRecord, error) {
	unlock := b.locks.acquire(id)
	defer unlock()

	record, err := b.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewFlowError(ErrCodeRecordNotFound, "no record for broadcast", map[string]interface{}{"id": id})
		}
		return nil, fmt.Errorf("load record for broadcast: %w", err)
	}
	if !CanBroadcast(record) {
		if record.State == StateBroadcasting {
			return nil, NewFlowError(ErrCodeAlreadyBroadcasting,
				"record is already broadcasting", map[string]interface{}{"id": id})
		}
		return nil, NewFlowError(ErrCodeNotValidated,
			"record is not validated for broadcast",
			map[string]interface{}{"id": id, "state": string(record.State)})
	}

	next, err := Transition(record, EventBroadcastRequested)
	if err != nil {
		return nil, err
	}
	if err := b.store.Put(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (b *BroadcastController) revertToValidated(ctx context.Context, id string) error {
	unlock := b.locks.acquire(id)
	defer unlock()

	record, err := b.store.Get(ctx, id)
	if err != nil {
		return err
	}
	// A webhook may have landed while the call was in flight; a terminal
	// record stays where it is.
	if record.State != StateBroadcasting {
		return nil
	}
	next, err := Transition(record, EventBroadcastErrored)
	if err != nil {
		return err
	}
	return b.store.Put(ctx, next)
}
