package payflow

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DraftSaver debounces autosave of a form draft under a deterministic
// key. Last write wins and no partial write is ever visible: the write
// lock is held across the whole persistence call and released on every
// exit path.
type DraftSaver struct {
	store    DraftStore
	key      string
	debounce time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	pending []byte
	timer   *time.Timer
}

// DefaultDraftDebounce is the edit-to-save settle window
const DefaultDraftDebounce = 500 * time.Millisecond

// NewDraftSaver creates a saver for one draft key
func NewDraftSaver(store DraftStore, key string, debounce time.Duration, log *slog.Logger) *DraftSaver {
	if debounce <= 0 {
		debounce = DefaultDraftDebounce
	}
	if log == nil {
		log = slog.Default()
	}
	return &DraftSaver{store: store, key: key, debounce: debounce, log: log}
}

// Queue records the latest draft value and (re)arms the debounce timer.
// Repeated edits within the window collapse into one save of the most
// recent value.
func (d *DraftSaver) Queue(value []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = append([]byte(nil), value...)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, func() {
		// A failed autosave keeps the value pending for the next attempt
		if err := d.Flush(context.Background()); err != nil {
			d.log.Error("draft autosave failed", "key", d.key, "err", err)
		}
	})
}

// Flush persists the pending value immediately, if any
func (d *DraftSaver) Flush(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending == nil {
		return nil
	}
	if err := d.store.SaveDraft(ctx, d.key, d.pending); err != nil {
		return err
	}
	d.pending = nil
	return nil
}

// Load returns the persisted draft value for this key
func (d *DraftSaver) Load(ctx context.Context) ([]byte, error) {
	return d.store.LoadDraft(ctx, d.key)
}
