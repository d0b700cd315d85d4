package payflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Scheduler materializes recurring payment templates into fresh drafts
// on a fixed interval and runs the dry-run validation on each, leaving
// the record in Validated (or Rejected) for the operator to confirm.
// There is no background retry of abandoned broadcasts: a draft the
// operator never confirms stays Validated and consumes nothing.
type Scheduler struct {
	orch     *Orchestrator
	notifier Notifier
	log      *slog.Logger

	mu      sync.Mutex
	entries map[string]RecurringPayment
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler over the orchestrator
func NewScheduler(orch *Orchestrator, notifier Notifier, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		orch:     orch,
		notifier: notifier,
		log:      log,
		entries:  make(map[string]RecurringPayment),
	}
}

// Add registers a recurring payment template. Re-adding the same key
// replaces the template; the change takes effect after Start.
func (s *Scheduler) Add(rp RecurringPayment) error {
	if rp.Key == "" {
		return fmt.Errorf("recurring payment key is required")
	}
	if rp.Interval <= 0 {
		return fmt.Errorf("recurring payment interval must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[rp.Key] = rp
	return nil
}

// Start launches one ticker loop per registered template. It returns
// immediately; Stop shuts all loops down.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	entries := make([]RecurringPayment, 0, len(s.entries))
	for _, rp := range s.entries {
		entries = append(entries, rp)
	}
	s.mu.Unlock()

	for _, rp := range entries {
		s.wg.Add(1)
		go s.run(ctx, rp)
	}
}

// Stop cancels all ticker loops and waits for them to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, rp RecurringPayment) {
	defer s.wg.Done()

	t := time.NewTicker(rp.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.fire(ctx, rp)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, rp RecurringPayment) {
	record, err := s.orch.CreateDraft(ctx, rp.Envelope)
	if err != nil {
		s.log.Error("scheduled draft creation failed", "key", rp.Key, "err", err)
		return
	}

	outcome, err := s.orch.Simulate(ctx, record.ID)
	if err != nil {
		s.log.Warn("scheduled simulation failed", "key", rp.Key, "id", record.ID, "err", err)
		if s.notifier != nil {
			s.notifier.Notify(ctx, fmt.Sprintf("scheduled payment %s: validation unavailable, will retry next interval", rp.Key))
		}
		return
	}

	if s.notifier != nil {
		if outcome.Success {
			s.notifier.Notify(ctx, fmt.Sprintf("scheduled payment %s ready to confirm (%s)", rp.Key, record.ID))
		} else {
			s.notifier.Notify(ctx, fmt.Sprintf("scheduled payment %s rejected: %s", rp.Key, outcome.Reason))
		}
	}
}
