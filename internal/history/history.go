// Package history keeps an audit trail of campaign activity in SQLite: every
// send attempt of a dispatch batch and every contact the tracker migrated to
// responded. The CSV files remain the source of truth; history is append-only
// and never read back into campaign state.
package history

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/teemow/outreach/internal/contacts"
)

// Kind classifies a history event.
type Kind string

const (
	KindSent       Kind = "sent"
	KindSendFailed Kind = "send_failed"
	KindReplied    Kind = "replied"
)

// Event is one row of the history.
type Event struct {
	ID        string    `db:"id" json:"id"`
	Kind      Kind      `db:"kind" json:"kind"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name,omitempty"`
	BatchID   string    `db:"batch_id" json:"batch_id,omitempty"`
	Cycle     uint64    `db:"cycle" json:"cycle,omitempty"`
	MessageID string    `db:"message_id" json:"message_id,omitempty"`
	Error     string    `db:"error" json:"error,omitempty"`
	CreatedAt time.Time `db:"-" json:"created_at"`
}

// row mirrors the events table; created_at is stored as unix milliseconds.
type row struct {
	Event
	CreatedAtMS int64 `db:"created_at"`
}

// Filter narrows List results.
type Filter struct {
	Kind  Kind
	Email string
	Limit int
}

// Store is the SQLite backed history.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (or creates) the database at path, enables WAL mode and applies
// outstanding migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	db, err := sqlx.Open("sqlite", filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database. Safe on a nil Store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) runMigrations() error {
	current := 0

	var tables int
	err := s.db.Get(&tables, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tables > 0 {
		if err := s.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// SchemaVersion returns the applied schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// RecordSend stores the outcome of one dispatch attempt.
func (s *Store) RecordSend(ctx context.Context, batchID string, c contacts.Contact, messageID string, sendErr error) error {
	ev := Event{
		Kind:      KindSent,
		Email:     c.Email,
		Name:      c.Name,
		BatchID:   batchID,
		MessageID: messageID,
	}
	if sendErr != nil {
		ev.Kind = KindSendFailed
		ev.Error = sendErr.Error()
	}
	return s.insert(ctx, []Event{ev})
}

// RecordReplies stores one event per migrated contact.
func (s *Store) RecordReplies(ctx context.Context, cycle uint64, migrated []contacts.Contact) error {
	events := make([]Event, 0, len(migrated))
	for _, c := range migrated {
		events = append(events, Event{
			Kind:  KindReplied,
			Email: c.Email,
			Name:  c.Name,
			Cycle: cycle,
		})
	}
	return s.insert(ctx, events)
}

func (s *Store) insert(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	for _, ev := range events {
		r := row{Event: ev, CreatedAtMS: now.UnixMilli()}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO events (id, kind, email, name, batch_id, cycle, message_id, error, created_at)
			VALUES (:id, :kind, :email, :name, :batch_id, :cycle, :message_id, :error, :created_at)`, r)
		if err != nil {
			return fmt.Errorf("inserting %s event for %s: %w", ev.Kind, ev.Email, err)
		}
	}
	return tx.Commit()
}

// List returns events newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Event, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if f.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Email != "" {
		conditions = append(conditions, "email = ?")
		args = append(args, contacts.NormalizeEmail(f.Email))
	}

	query := "SELECT id, kind, email, name, batch_id, cycle, message_id, error, created_at FROM events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for _, r := range rows {
		ev := r.Event
		ev.CreatedAt = time.UnixMilli(r.CreatedAtMS).UTC()
		events = append(events, ev)
	}
	return events, nil
}

// Counts returns the number of events per kind.
func (s *Store) Counts(ctx context.Context) (map[Kind]int, error) {
	var rows []struct {
		Kind  Kind `db:"kind"`
		Count int  `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, "SELECT kind, COUNT(*) AS n FROM events GROUP BY kind"); err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	counts := make(map[Kind]int, len(rows))
	for _, r := range rows {
		counts[r.Kind] = r.Count
	}
	return counts, nil
}
