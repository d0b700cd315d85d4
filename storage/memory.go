// Package storage provides record and draft persistence backends.
package storage

import (
	"context"
	"sync"

	payflow "github.com/lumenpay/payflow"
)

// MemoryStore is an in-memory record and draft store. It is the
// deterministic substitute used in tests and single-process setups.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*payflow.TransactionRecord
	drafts  map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*payflow.TransactionRecord),
		drafts:  make(map[string][]byte),
	}
}

// Get returns a copy of the record for id
func (s *MemoryStore) Get(ctx context.Context, id string) (*payflow.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, payflow.ErrNotFound
	}
	return record.Clone(), nil
}

// Put stores a copy of the record, replacing any previous version
func (s *MemoryStore) Put(ctx context.Context, record *payflow.TransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.ID] = record.Clone()
	return nil
}

// Delete removes the record for id; deleting a missing id is a no-op
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// SaveDraft overwrites the draft value for key
func (s *MemoryStore) SaveDraft(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drafts[key] = append([]byte(nil), value...)
	return nil
}

// LoadDraft returns the draft value for key
func (s *MemoryStore) LoadDraft(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.drafts[key]
	if !ok {
		return nil, payflow.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

var (
	_ payflow.RecordStore = (*MemoryStore)(nil)
	_ payflow.DraftStore  = (*MemoryStore)(nil)
)
