package flow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// ErrStateVersionConflict is returned when the stored version is not the
// one the writer read.
var ErrStateVersionConflict = errors.New("state version conflict")

// StateRecord is one persisted entity: its current step, an opaque Data
// payload and the version guarding concurrent writers. Kind tells entities
// of different machines apart.
type StateRecord struct {
	EntityID  string
	Kind      string
	State     string
	Version   int
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *StateRecord) clone() *StateRecord {
	cp := *r
	cp.Data = slices.Clone(r.Data)
	return &cp
}

// prepare validates a record about to be written and fills UpdatedAt.
func (r *StateRecord) prepare() error {
	r.EntityID = strings.TrimSpace(r.EntityID)
	r.State = normalizeState(r.State)
	switch {
	case r.EntityID == "":
		return errors.New("state record: entity id required")
	case r.State == "":
		return errors.New("state record: state required")
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	r.UpdatedAt = r.UpdatedAt.UTC()
	return nil
}

// StateStore persists records with compare-and-set on Version. Version 0
// means "must not exist yet"; the first write yields version 1.
type StateStore interface {
	// Load returns nil, nil when id is unknown.
	Load(ctx context.Context, id string) (*StateRecord, error)
	SaveIfVersion(ctx context.Context, rec *StateRecord, expectedVersion int) (newVersion int, err error)
	Delete(ctx context.Context, id string) (bool, error)
	// PurgeBefore drops records not written since cutoff.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)
	// List returns every record ordered by entity id.
	List(ctx context.Context) ([]*StateRecord, error)
}

type InMemoryStateStore struct {
	mu      sync.RWMutex
	records map[string]*StateRecord
}

func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{records: map[string]*StateRecord{}}
}

func (s *InMemoryStateStore) Load(_ context.Context, id string) (*StateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[strings.TrimSpace(id)]; ok {
		return rec.clone(), nil
	}
	return nil, nil
}

func (s *InMemoryStateStore) SaveIfVersion(_ context.Context, rec *StateRecord, expectedVersion int) (int, error) {
	if rec == nil {
		return 0, errors.New("state record required")
	}
	next := rec.clone()
	if err := next.prepare(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.records[next.EntityID]
	switch {
	case !exists && expectedVersion > 0, exists && current.Version != expectedVersion:
		return 0, ErrStateVersionConflict
	case exists:
		next.CreatedAt = current.CreatedAt
	case next.CreatedAt.IsZero():
		next.CreatedAt = next.UpdatedAt
	}
	next.Version = max(expectedVersion, 0) + 1
	s.records[next.EntityID] = next
	return next.Version, nil
}

func (s *InMemoryStateStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id = strings.TrimSpace(id)
	_, ok := s.records[id]
	delete(s.records, id)
	return ok, nil
}

func (s *InMemoryStateStore) PurgeBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.records {
		if rec.UpdatedAt.Before(cutoff) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStateStore) List(_ context.Context) ([]*StateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*StateRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.clone())
	}
	slices.SortFunc(out, func(a, b *StateRecord) int { return strings.Compare(a.EntityID, b.EntityID) })
	return out, nil
}

// SQLiteStateStore keeps records in one table, created on first use.
// Timestamps are stored as unix nanoseconds.
type SQLiteStateStore struct {
	db    *sql.DB
	table string

	once      sync.Once
	schemaErr error
}

func NewSQLiteStateStore(db *sql.DB, table string) *SQLiteStateStore {
	if table == "" {
		table = "state_records"
	}
	return &SQLiteStateStore{db: db, table: table}
}

func (s *SQLiteStateStore) Load(ctx context.Context, id string) (*StateRecord, error) {
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, s.query(`SELECT {cols} FROM {table} WHERE entity_id = ?`), strings.TrimSpace(id))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *SQLiteStateStore) SaveIfVersion(ctx context.Context, rec *StateRecord, expectedVersion int) (int, error) {
	if err := s.migrate(ctx); err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, errors.New("state record required")
	}
	next := rec.clone()
	if err := next.prepare(); err != nil {
		return 0, err
	}
	expectedVersion = max(expectedVersion, 0)

	var (
		res sql.Result
		err error
	)
	if expectedVersion == 0 {
		if next.CreatedAt.IsZero() {
			next.CreatedAt = next.UpdatedAt
		}
		res, err = s.db.ExecContext(ctx,
			s.query(`INSERT OR IGNORE INTO {table} ({cols}) VALUES (?, ?, ?, 1, ?, ?, ?)`),
			next.EntityID, next.Kind, next.State, next.Data, next.CreatedAt.UnixNano(), next.UpdatedAt.UnixNano())
	} else {
		res, err = s.db.ExecContext(ctx,
			s.query(`UPDATE {table} SET kind = ?, state = ?, version = version + 1, data = ?, updated_at = ? WHERE entity_id = ? AND version = ?`),
			next.Kind, next.State, next.Data, next.UpdatedAt.UnixNano(), next.EntityID, expectedVersion)
	}
	if err != nil {
		return 0, fmt.Errorf("save %s: %w", next.EntityID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrStateVersionConflict
	}
	return expectedVersion + 1, nil
}

func (s *SQLiteStateStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.exec(ctx, `DELETE FROM {table} WHERE entity_id = ?`, strings.TrimSpace(id))
	return n > 0, err
}

func (s *SQLiteStateStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.exec(ctx, `DELETE FROM {table} WHERE updated_at < ?`, cutoff.UnixNano())
	return int(n), err
}

func (s *SQLiteStateStore) List(ctx context.Context) ([]*StateRecord, error) {
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.query(`SELECT {cols} FROM {table} ORDER BY entity_id`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StateRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStateStore) exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	if err := s.migrate(ctx); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, s.query(stmt), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStateStore) migrate(ctx context.Context) error {
	if s.db == nil {
		return errors.New("sqlite state store: no database")
	}
	s.once.Do(func() {
		ctx := context.WithoutCancel(ctx)
		for _, stmt := range []string{
			`CREATE TABLE IF NOT EXISTS {table} (
				entity_id  TEXT PRIMARY KEY,
				kind       TEXT NOT NULL DEFAULT '',
				state      TEXT NOT NULL,
				version    INTEGER NOT NULL,
				data       BLOB,
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS {table}_updated_at ON {table} (updated_at)`,
		} {
			if _, err := s.db.ExecContext(ctx, s.query(stmt)); err != nil {
				s.schemaErr = fmt.Errorf("migrate %s: %w", s.table, err)
				return
			}
		}
	})
	return s.schemaErr
}

func (s *SQLiteStateStore) query(stmt string) string {
	return strings.NewReplacer(
		"{table}", s.table,
		"{cols}", "entity_id, kind, state, version, data, created_at, updated_at",
	).Replace(stmt)
}

func scanRecord(row interface{ Scan(...any) error }) (*StateRecord, error) {
	var (
		rec              StateRecord
		created, updated int64
	)
	if err := row.Scan(&rec.EntityID, &rec.Kind, &rec.State, &rec.Version, &rec.Data, &created, &updated); err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	return &rec, nil
}
