package session

import (
	"database/sql"
	"fmt"
	"io"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/flow"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

const sessionsTable = "monitoring_sessions"

// OpenBackend opens the versioned store behind a session Store. The
// returned closer releases the database handle.
func OpenBackend(driver, path string) (flow.StateStore, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		return flow.NewInMemoryStateStore(), nopCloser{}, nil
	case DriverSQLite, "sqlite3":
		if strings.TrimSpace(path) == "" {
			return nil, nil, fmt.Errorf("sqlite driver requires a database path")
		}
		db, err := sql.Open("sqlite3", path)
		if err != nil {
			return nil, nil, err
		}
		if path == ":memory:" {
			db.SetMaxOpenConns(1)
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return flow.NewSQLiteStateStore(db, sessionsTable), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
