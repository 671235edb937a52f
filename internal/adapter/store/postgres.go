package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
)

// State is the lifecycle state of a PostgresStore.
type State int32

const (
	// StateUninitialized means the schema has not been provisioned yet.
	StateUninitialized State = iota
	// StateReady means the schema exists and statements are being served.
	StateReady
	// StateDisabled is terminal: every operation is a miss or a no-op.
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

const defaultOpTimeout = 3 * time.Second

// PostgresStore persists embeddings, feedback counters and label expansions.
// It provisions its own tables on first use and disables itself for the rest
// of the process on the first connection, schema or statement error.
type PostgresStore struct {
	db        *sql.DB
	opTimeout time.Duration

	state    atomic.Int32
	schemaMu sync.Mutex
}

// NewPostgresStore opens a lazily connected pool for databaseURL. An empty
// URL or an unusable DSN yields a store that starts disabled.
func NewPostgresStore(databaseURL string, opTimeout time.Duration) *PostgresStore {
	if strings.TrimSpace(databaseURL) == "" {
		slog.Info("embedding store disabled", "reason", "DATABASE_URL not set")
		return newDisabledStore()
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		slog.Warn("embedding store disabled", "op", "open database", "error", err)
		return newDisabledStore()
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewPostgresStoreWithDB(db, opTimeout)
}

// NewPostgresStoreWithDB wraps an existing pool.
func NewPostgresStoreWithDB(db *sql.DB, opTimeout time.Duration) *PostgresStore {
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	s := &PostgresStore{db: db, opTimeout: opTimeout}
	if db == nil {
		s.state.Store(int32(StateDisabled))
	}
	return s
}

func newDisabledStore() *PostgresStore {
	return NewPostgresStoreWithDB(nil, defaultOpTimeout)
}

// State reports the current lifecycle state.
func (s *PostgresStore) State() State {
	return State(s.state.Load())
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ready provisions the schema on first use and reports whether statements
// may be issued. Callers that lose the race wait on the mutex.
func (s *PostgresStore) ready(ctx context.Context) bool {
	switch s.State() {
	case StateReady:
		return true
	case StateDisabled:
		return false
	}

	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	switch s.State() {
	case StateReady:
		return true
	case StateDisabled:
		return false
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.fail("provision schema", err)
			return false
		}
	}

	s.state.Store(int32(StateReady))
	slog.Info("embedding store ready")
	return true
}

// fail moves the store to StateDisabled. Cancellation by the caller leaves
// the state untouched so the next request can retry, and a value the
// database rejects only fails the current call.
func (s *PostgresStore) fail(op string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if isDataError(err) {
		slog.Warn("embedding store rejected value", "op", op, "error", err)
		return
	}
	if State(s.state.Swap(int32(StateDisabled))) != StateDisabled {
		slog.Warn("embedding store disabled", "op", op, "error", err)
	}
}

// isDataError reports data exceptions (class 22) and integrity constraint
// violations (class 23), which depend on the row and not on the backend.
func isDataError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code.Class() {
	case "22", "23":
		return true
	}
	return false
}

func (s *PostgresStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}
