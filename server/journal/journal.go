package journal

import (
	"context"
	"crudconsole/logger"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const (
	StatusApplied = "applied"
	StatusFailed  = "failed"

	DefaultTable = "console_link_journal"

	schemaTimeout = 10 * time.Second
)

// Entry is one link-back attempt.
type Entry struct {
	Id            int64     `json:"id"`
	CreatedRid    string    `json:"createdRid"`
	OwnerProperty string    `json:"ownerProperty"`
	TargetRid     string    `json:"targetRid"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Journal interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, createdRid string) ([]Entry, error)
	Close() error
}

type NoopJournal struct{}

func (NoopJournal) Record(ctx context.Context, entry Entry) error { return nil }

func (NoopJournal) List(ctx context.Context, createdRid string) ([]Entry, error) {
	return []Entry{}, nil
}

func (NoopJournal) Close() error { return nil }

type PgJournal struct {
	db    *sql.DB
	table string

	mutex    sync.Mutex
	ready    bool
	attempts int
}

// NewPgJournal opens the journal database with the pgx driver. The table is
// created on first use.
func NewPgJournal(dbUrl string, table string) (*PgJournal, error) {
	db, err := sql.Open("pgx", dbUrl)
	if err != nil {
		return nil, wrapPgError(ErrJournalUnavailable, err)
	}
	db.SetConnMaxLifetime(0)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)
	if table == "" {
		table = DefaultTable
	}
	return &PgJournal{db: db, table: table}, nil
}

// Open returns the postgres journal when dbUrl is set and NoopJournal otherwise.
func Open(dbUrl string) (Journal, error) {
	if dbUrl == "" {
		return NoopJournal{}, nil
	}
	return NewPgJournal(dbUrl, DefaultTable)
}

func (j *PgJournal) quotedTable() string {
	return pq.QuoteIdentifier(j.table)
}

// ensureSchema creates the table until it succeeds once. The DDL runs
// outside of the caller's context so a dropped request can't fail it.
func (j *PgJournal) ensureSchema() error {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	if j.ready {
		return nil
	}
	j.attempts++

	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	created_rid TEXT NOT NULL,
	owner_property TEXT NOT NULL,
	target_rid TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, j.quotedTable())
	if _, err := j.db.ExecContext(ctx, ddl); err != nil {
		logger.Error("Can't create link journal table %s: %s", j.table, err.Error())
		return wrapPgError(ErrJournalSchema, err)
	}
	j.ready = true
	return nil
}

func (j *PgJournal) Record(ctx context.Context, entry Entry) error {
	if err := j.ensureSchema(); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (created_rid, owner_property, target_rid, status, error, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		j.quotedTable(),
	)
	if _, err := j.db.ExecContext(ctx, query, entry.CreatedRid, entry.OwnerProperty, entry.TargetRid, entry.Status, entry.Error, entry.CreatedAt); err != nil {
		return wrapPgError(ErrJournalWrite, err)
	}
	return nil
}

func (j *PgJournal) List(ctx context.Context, createdRid string) ([]Entry, error) {
	if err := j.ensureSchema(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		"SELECT id, created_rid, owner_property, target_rid, status, error, created_at FROM %s WHERE created_rid = $1 ORDER BY id",
		j.quotedTable(),
	)
	rows, err := j.db.QueryContext(ctx, query, createdRid)
	if err != nil {
		return nil, wrapPgError(ErrJournalRead, err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.Id, &entry.CreatedRid, &entry.OwnerProperty, &entry.TargetRid, &entry.Status, &entry.Error, &entry.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning link journal row")
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPgError(ErrJournalRead, err)
	}
	return entries, nil
}

func (j *PgJournal) Close() error {
	return j.db.Close()
}

// MemoryJournal keeps entries in process, used by tests and local runs.
type MemoryJournal struct {
	mutex   sync.Mutex
	entries []Entry
}

func (m *MemoryJournal) Record(ctx context.Context, entry Entry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entry.Id = int64(len(m.entries) + 1)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryJournal) List(ctx context.Context, createdRid string) ([]Entry, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entries := make([]Entry, 0)
	for _, entry := range m.entries {
		if createdRid == "" || entry.CreatedRid == createdRid {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (m *MemoryJournal) Close() error { return nil }
