// Package sqlite provides a SQLite-backed record and draft store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	payflow "github.com/lumenpay/payflow"
	_ "modernc.org/sqlite"
)

// Store persists transaction records and form drafts in SQLite.
// Each Put is a single upsert, so a reader sees either the previous or
// the new record version, never a partial write.
type Store struct {
	sqlDB *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS transaction_records (
  id                    TEXT PRIMARY KEY,
  envelope              TEXT NOT NULL,
  state                 TEXT NOT NULL,
  simulation_result     TEXT,
  broadcast_attempted_at INTEGER,
  confirmed_at          INTEGER,
  last_webhook_event_id TEXT NOT NULL DEFAULT '',
  created_at            INTEGER NOT NULL,
  updated_at            INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS drafts (
  key        TEXT PRIMARY KEY,
  value      BLOB NOT NULL,
  updated_at INTEGER NOT NULL
);`

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get returns the record for id.
func (s *Store) Get(ctx context.Context, id string) (*payflow.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("record id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, envelope, state, simulation_result,
		        broadcast_attempted_at, confirmed_at,
		        last_webhook_event_id, created_at, updated_at
		   FROM transaction_records
		  WHERE id = ?`,
		id,
	)

	var record payflow.TransactionRecord
	var state string
	var simulation sql.NullString
	var broadcastAt sql.NullInt64
	var confirmedAt sql.NullInt64
	var createdAt int64
	var updatedAt int64
	err := row.Scan(
		&record.ID,
		&record.Envelope,
		&state,
		&simulation,
		&broadcastAt,
		&confirmedAt,
		&record.LastWebhookEventID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payflow.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction record: %w", err)
	}

	record.State = payflow.State(state)
	if simulation.Valid && simulation.String != "" {
		var outcome payflow.SimulationOutcome
		if err := json.Unmarshal([]byte(simulation.String), &outcome); err != nil {
			return nil, fmt.Errorf("decode simulation result: %w", err)
		}
		record.SimulationResult = &outcome
	}
	if broadcastAt.Valid {
		t := fromMillis(broadcastAt.Int64)
		record.BroadcastAttemptedAt = &t
	}
	if confirmedAt.Valid {
		t := fromMillis(confirmedAt.Int64)
		record.ConfirmedAt = &t
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return &record, nil
}

// Put upserts one record.
func (s *Store) Put(ctx context.Context, record *payflow.TransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil || strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("record id is required")
	}

	var simulation sql.NullString
	if record.SimulationResult != nil {
		encoded, err := json.Marshal(record.SimulationResult)
		if err != nil {
			return fmt.Errorf("encode simulation result: %w", err)
		}
		simulation = sql.NullString{String: string(encoded), Valid: true}
	}
	var broadcastAt sql.NullInt64
	if record.BroadcastAttemptedAt != nil {
		broadcastAt = sql.NullInt64{Int64: toMillis(*record.BroadcastAttemptedAt), Valid: true}
	}
	var confirmedAt sql.NullInt64
	if record.ConfirmedAt != nil {
		confirmedAt = sql.NullInt64{Int64: toMillis(*record.ConfirmedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO transaction_records (
		   id, envelope, state, simulation_result,
		   broadcast_attempted_at, confirmed_at,
		   last_webhook_event_id, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   envelope = excluded.envelope,
		   state = excluded.state,
		   simulation_result = excluded.simulation_result,
		   broadcast_attempted_at = excluded.broadcast_attempted_at,
		   confirmed_at = excluded.confirmed_at,
		   last_webhook_event_id = excluded.last_webhook_event_id,
		   updated_at = excluded.updated_at`,
		record.ID,
		record.Envelope,
		string(record.State),
		simulation,
		broadcastAt,
		confirmedAt,
		record.LastWebhookEventID,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put transaction record: %w", err)
	}
	return nil
}

// Delete removes the record for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM transaction_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction record: %w", err)
	}
	return nil
}

// SaveDraft overwrites the draft value for key.
func (s *Store) SaveDraft(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("draft key is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO drafts (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   updated_at = excluded.updated_at`,
		key,
		value,
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// LoadDraft returns the draft value for key.
func (s *Store) LoadDraft(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var value []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM drafts WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payflow.ErrNotFound
		}
		return nil, fmt.Errorf("load draft: %w", err)
	}
	return value, nil
}

var (
	_ payflow.RecordStore = (*Store)(nil)
	_ payflow.DraftStore  = (*Store)(nil)
)
