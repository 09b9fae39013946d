package flow

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	_ StateStore = (*InMemoryStateStore)(nil)
	_ StateStore = (*SQLiteStateStore)(nil)
)

func newSQLiteStore(t *testing.T) *SQLiteStateStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// every pooled connection would get its own in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteStateStore(db, "sessions")
}

func storesUnderTest(t *testing.T) map[string]StateStore {
	return map[string]StateStore{
		"memory": NewInMemoryStateStore(),
		"sqlite": newSQLiteStore(t),
	}
}

func TestStateStoreSaveIfVersionAndConflict(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			v1, err := store.SaveIfVersion(ctx, &StateRecord{EntityID: "1", State: "Registering", Data: []byte(`{"a":1}`)}, 0)
			if err != nil {
				t.Fatalf("initial save failed: %v", err)
			}
			if v1 != 1 {
				t.Fatalf("expected version 1, got %d", v1)
			}

			if _, err := store.SaveIfVersion(ctx, &StateRecord{EntityID: "1", State: "branching"}, 0); !errors.Is(err, ErrStateVersionConflict) {
				t.Fatalf("expected version conflict, got %v", err)
			}

			v2, err := store.SaveIfVersion(ctx, &StateRecord{EntityID: "1", State: "branching", Data: []byte(`{"a":2}`)}, 1)
			if err != nil {
				t.Fatalf("save with version 1 failed: %v", err)
			}
			if v2 != 2 {
				t.Fatalf("expected version 2, got %d", v2)
			}

			rec, err := store.Load(ctx, "1")
			if err != nil || rec == nil {
				t.Fatalf("load failed: %v", err)
			}
			if rec.State != "branching" || rec.Version != 2 || string(rec.Data) != `{"a":2}` {
				t.Fatalf("unexpected record %+v", rec)
			}
			if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
				t.Fatalf("expected timestamps, got %+v", rec)
			}

			if _, err := store.SaveIfVersion(ctx, &StateRecord{EntityID: "1", State: "registering"}, 1); !errors.Is(err, ErrStateVersionConflict) {
				t.Fatalf("expected stale version conflict, got %v", err)
			}
		})
	}
}

func TestStateStoreKeepsCreatedAtAcrossUpdates(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
			if _, err := store.SaveIfVersion(ctx, &StateRecord{EntityID: "s", Kind: "patient", State: "logged_out", UpdatedAt: first}, 0); err != nil {
				t.Fatalf("seed: %v", err)
			}
			later := first.Add(time.Minute)
			if _, err := store.SaveIfVersion(ctx, &StateRecord{EntityID: "s", Kind: "patient", State: "form_ready", UpdatedAt: later, CreatedAt: later}, 1); err != nil {
				t.Fatalf("update: %v", err)
			}
			rec, err := store.Load(ctx, "s")
			if err != nil || rec == nil {
				t.Fatalf("load: %v", err)
			}
			if rec.Kind != "patient" || !rec.CreatedAt.Equal(first) || !rec.UpdatedAt.Equal(later) {
				t.Fatalf("unexpected record %+v", rec)
			}
		})
	}
}

func TestStateStoreLoadMissing(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			rec, err := store.Load(context.Background(), "missing")
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if rec != nil {
				t.Fatalf("expected nil record, got %+v", rec)
			}
		})
	}
}

func TestStateStoreDeleteAndPurge(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			old := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
			fresh := old.Add(2 * time.Hour)
			for id, ts := range map[string]time.Time{"old": old, "fresh": fresh, "gone": fresh} {
				if _, err := store.SaveIfVersion(ctx, &StateRecord{EntityID: id, State: "logged_out", UpdatedAt: ts}, 0); err != nil {
					t.Fatalf("seed %s: %v", id, err)
				}
			}

			deleted, err := store.Delete(ctx, "gone")
			if err != nil || !deleted {
				t.Fatalf("expected delete, got %v %v", deleted, err)
			}
			deleted, err = store.Delete(ctx, "gone")
			if err != nil || deleted {
				t.Fatalf("expected second delete to be a no-op, got %v %v", deleted, err)
			}

			purged, err := store.PurgeBefore(ctx, old.Add(time.Hour))
			if err != nil {
				t.Fatalf("purge failed: %v", err)
			}
			if purged != 1 {
				t.Fatalf("expected 1 purged record, got %d", purged)
			}

			recs, err := store.List(ctx)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(recs) != 1 || recs[0].EntityID != "fresh" {
				t.Fatalf("unexpected remaining records %+v", recs)
			}
		})
	}
}

func TestStateStoreRequiresEntityAndState(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.SaveIfVersion(context.Background(), &StateRecord{State: "x"}, 0); err == nil {
				t.Fatalf("expected missing entity error")
			}
			if _, err := store.SaveIfVersion(context.Background(), &StateRecord{EntityID: "1"}, 0); err == nil {
				t.Fatalf("expected missing state error")
			}
		})
	}
}

func TestInMemoryStateStoreClonesOnRead(t *testing.T) {
	store := NewInMemoryStateStore()
	ctx := context.Background()
	if _, err := store.SaveIfVersion(ctx, &StateRecord{EntityID: "1", Kind: "patient", State: "a", Data: []byte("abc")}, 0); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	rec, _ := store.Load(ctx, "1")
	rec.Data[0] = 'z'
	rec.Kind = "doctor"

	again, _ := store.Load(ctx, "1")
	if string(again.Data) != "abc" || again.Kind != "patient" {
		t.Fatalf("stored record mutated through a loaded copy: %+v", again)
	}
}

func TestInMemoryStateStoreConcurrentCompareAndSet(t *testing.T) {
	store := NewInMemoryStateStore()
	if _, err := store.SaveIfVersion(context.Background(), &StateRecord{EntityID: "1", State: "draft"}, 0); err != nil {
		t.Fatalf("seed state failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	errs := make(chan error, 2)
	attempt := func() {
		defer wg.Done()
		_, err := store.SaveIfVersion(context.Background(), &StateRecord{EntityID: "1", State: "approved"}, 1)
		errs <- err
	}
	go attempt()
	go attempt()
	wg.Wait()
	close(errs)

	success, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrStateVersionConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 || conflicts != 1 {
		t.Fatalf("expected one success and one conflict, got success=%d conflicts=%d", success, conflicts)
	}
}
