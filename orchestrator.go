package payflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Orchestrator owns per-draft lifecycle state: it creates drafts, runs
// simulations, gates broadcasts, and routes webhook confirmations into
// the state machine. All per-id mutation is serialized through one
// keyed lock shared with the broadcast controller and the ingestor.
type Orchestrator struct {
	store    RecordStore
	gateway  *SimulationGateway
	control  *BroadcastController
	ingestor *WebhookIngestor
	notifier Notifier
	locks    *recordLocks
	log      *slog.Logger

	beforeSimulateHooks     []BeforeSimulateHook
	afterSimulateHooks      []AfterSimulateHook
	beforeBroadcastHooks    []BeforeBroadcastHook
	afterBroadcastHooks     []AfterBroadcastHook
	onBroadcastFailureHooks []OnBroadcastFailureHook
}

// OrchestratorConfig wires the orchestrator's collaborators
type OrchestratorConfig struct {
	Store    RecordStore
	Client   SettlementClient
	Verifier SignatureVerifier
	Notifier Notifier
	Logger   *slog.Logger

	// Timeouts for the two blocking settlement calls (optional)
	SimulateTimeout  time.Duration
	BroadcastTimeout time.Duration
}

// NewOrchestrator creates an orchestrator from the given collaborators
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	locks := newRecordLocks()
	return &Orchestrator{
		store:    cfg.Store,
		gateway:  NewSimulationGateway(cfg.Client, cfg.SimulateTimeout, log),
		control:  newBroadcastController(cfg.Client, cfg.Store, locks, cfg.BroadcastTimeout, log),
		ingestor: newWebhookIngestor(cfg.Store, cfg.Verifier, locks, cfg.Notifier, log),
		notifier: cfg.Notifier,
		locks:    locks,
		log:      log,
	}
}

// ============================================================================
// Hook Registration Methods
// ============================================================================

func (o *Orchestrator) OnBeforeSimulate(hook BeforeSimulateHook) *Orchestrator {
	o.beforeSimulateHooks = append(o.beforeSimulateHooks, hook)
	return o
}

func (o *Orchestrator) OnAfterSimulate(hook AfterSimulateHook) *Orchestrator {
	o.afterSimulateHooks = append(o.afterSimulateHooks, hook)
	return o
}

func (o *Orchestrator) OnBeforeBroadcast(hook BeforeBroadcastHook) *Orchestrator {
	o.beforeBroadcastHooks = append(o.beforeBroadcastHooks, hook)
	return o
}

func (o *Orchestrator) OnAfterBroadcast(hook AfterBroadcastHook) *Orchestrator {
	o.afterBroadcastHooks = append(o.afterBroadcastHooks, hook)
	return o
}

func (o *Orchestrator) OnBroadcastFailure(hook OnBroadcastFailureHook) *Orchestrator {
	o.onBroadcastFailureHooks = append(o.onBroadcastFailureHooks, hook)
	return o
}

// ============================================================================
// Draft Operations
// ============================================================================

// CreateDraft assigns a stable id to a new envelope and persists the
// record in Draft state.
func (o *Orchestrator) CreateDraft(ctx context.Context, envelope string) (*TransactionRecord, error) {
	now := time.Now().UTC()
	record := &TransactionRecord{
		ID:        uuid.NewString(),
		Envelope:  envelope,
		State:     StateDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.store.Put(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// EditFields replaces the draft's envelope after the operator changed
// form fields. Whatever state the record was in short of broadcasting,
// it returns to Draft and the simulation result is discarded, so a
// stale simulation can never gate a subsequent broadcast.
func (o *Orchestrator) EditFields(ctx context.Context, id, envelope string) (*TransactionRecord, error) {
	unlock := o.locks.acquire(id)
	defer unlock()

	record, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Transition(record, EventFieldsEdited)
	if err != nil {
		return nil, err
	}
	next.Envelope = envelope
	if err := o.store.Put(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Archive removes a record by explicit operator action
func (o *Orchestrator) Archive(ctx context.Context, id string) error {
	unlock := o.locks.acquire(id)
	defer unlock()
	return o.store.Delete(ctx, id)
}

// Get returns the current record for id
func (o *Orchestrator) Get(ctx context.Context, id string) (*TransactionRecord, error) {
	return o.store.Get(ctx, id)
}

// ============================================================================
// Simulation
// ============================================================================

// Simulate runs a dry-run validation of the draft's envelope and moves
// the record to Validated or Rejected. On gateway_unavailable the record
// returns to Draft so the same action can be retried without operator
// changes.
func (o *Orchestrator) Simulate(ctx context.Context, id string) (*SimulationOutcome, error) {
	record, err := o.markSimulating(ctx, id)
	if err != nil {
		return nil, err
	}

	hookCtx := SimulateContext{Ctx: ctx, Record: *record, Timestamp: time.Now().UTC()}
	for _, hook := range o.beforeSimulateHooks {
		result, err := hook(hookCtx)
		if err != nil {
			o.revertSimulating(ctx, id)
			return nil, err
		}
		if result != nil && result.Abort {
			o.revertSimulating(ctx, id)
			return nil, fmt.Errorf("simulation aborted: %s", result.Reason)
		}
	}

	start := time.Now()
	outcome, err := o.gateway.Simulate(ctx, record.Envelope)
	if err != nil {
		// Transient: the form is fine, the network is not. Back to
		// Draft so retry is idempotent from the operator's view.
		o.revertSimulating(ctx, id)
		return nil, err
	}

	for _, hook := range o.afterSimulateHooks {
		if hookErr := hook(SimulateResultContext{
			SimulateContext: hookCtx,
			Outcome:         *outcome,
			Duration:        time.Since(start),
		}); hookErr != nil {
			o.log.Warn("after-simulate hook failed", "id", id, "err", hookErr)
		}
	}

	if err := o.recordOutcome(ctx, id, outcome); err != nil {
		return nil, err
	}
	if o.notifier != nil {
		if outcome.Success {
			o.notifier.Notify(ctx, fmt.Sprintf("transaction %s validated", id))
		} else {
			o.notifier.Notify(ctx, fmt.Sprintf("transaction %s rejected: %s", id, outcome.Reason))
		}
	}
	return outcome, nil
}

func (o *Orchestrator) markSimulating(ctx context.Context, id string) (*TransactionRecord, error) {
	unlock := o.locks.acquire(id)
	defer unlock()

	record, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Transition(record, EventSimulateStarted)
	if err != nil {
		return nil, err
	}
	if err := o.store.Put(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (o *Orchestrator) revertSimulating(ctx context.Context, id string) {
	unlock := o.locks.acquire(id)
	defer unlock()

	record, err := o.store.Get(ctx, id)
	if err != nil || record.State != StateSimulating {
		return
	}
	next, err := Transition(record, EventFieldsEdited)
	if err != nil {
		return
	}
	// The envelope is unchanged; only the state returns to Draft
	if err := o.store.Put(ctx, next); err != nil {
		o.log.Error("failed to revert simulating record", "id", id, "err", err)
	}
}

func (o *Orchestrator) recordOutcome(ctx context.Context, id string, outcome *SimulationOutcome) error {
	unlock := o.locks.acquire(id)
	defer unlock()

	record, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	event := EventSimulateFailed
	if outcome.Success {
		event = EventSimulateSucceeded
	}
	next, err := Transition(record, event)
	if err != nil {
		return err
	}
	next.SimulationResult = outcome
	return o.store.Put(ctx, next)
}

// ============================================================================
// Broadcast and Ingestion
// ============================================================================

// ConfirmBroadcast submits the validated record for settlement after the
// operator confirmed. At most one network submission happens per id even
// under concurrent calls; the losers fail fast with already_broadcasting.
func (o *Orchestrator) ConfirmBroadcast(ctx context.Context, id string) (*BroadcastResponse, error) {
	record, err := o.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewFlowError(ErrCodeRecordNotFound, "no record for broadcast", map[string]interface{}{"id": id})
		}
		return nil, err
	}

	hookCtx := BroadcastContext{Ctx: ctx, Record: *record, Timestamp: time.Now().UTC()}
	for _, hook := range o.beforeBroadcastHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return nil, err
		}
		if result != nil && result.Abort {
			return nil, fmt.Errorf("broadcast aborted: %s", result.Reason)
		}
	}

	start := time.Now()
	resp, err := o.control.Broadcast(ctx, id)
	if err != nil {
		for _, hook := range o.onBroadcastFailureHooks {
			if hookErr := hook(BroadcastFailureContext{
				BroadcastContext: hookCtx,
				Error:            err,
				Duration:         time.Since(start),
			}); hookErr != nil {
				o.log.Warn("broadcast-failure hook failed", "id", id, "err", hookErr)
			}
		}
		return nil, err
	}

	for _, hook := range o.afterBroadcastHooks {
		if hookErr := hook(BroadcastResultContext{
			BroadcastContext: hookCtx,
			Result:           *resp,
			Duration:         time.Since(start),
		}); hookErr != nil {
			o.log.Warn("after-broadcast hook failed", "id", id, "err", hookErr)
		}
	}

	if o.notifier != nil {
		o.notifier.Notify(ctx, fmt.Sprintf("transaction %s submitted for settlement", id))
	}
	return resp, nil
}

// Ingest processes one webhook confirmation event
func (o *Orchestrator) Ingest(ctx context.Context, provider string, event WebhookEvent) (*IngestResult, error) {
	return o.ingestor.Ingest(ctx, provider, event)
}
