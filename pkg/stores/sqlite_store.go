package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory journal.
const MemoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	busyTimeout time.Duration
}

// Config holds SQLite store configuration.
type Config struct {
	// Path is the database file. Parent directories are created on Init.
	Path string

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a store; call Init and Migrate before use.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	return &SQLiteStore{path: cfg.Path, busyTimeout: cfg.BusyTimeout}, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) inMemory() bool {
	return s.path == MemoryPath || strings.Contains(s.path, "mode=memory")
}

// Init opens the database connection.
func (s *SQLiteStore) Init(ctx context.Context) error {
	pragmas := fmt.Sprintf("_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", s.busyTimeout.Milliseconds())
	if !s.inMemory() {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
			return fmt.Errorf("failed to create journal directory: %w", err)
		}
		pragmas += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", s.path+"?"+pragmas)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if s.inMemory() {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreateSession records a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO sessions (id, status, started_at, ended_at, error, operations)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.Status,
		session.StartedAt.UTC(),
		utcPtr(session.EndedAt),
		session.Error,
		session.Operations,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// FinishSession records the outcome of a session.
func (s *SQLiteStore) FinishSession(ctx context.Context, id string, status SessionStatus, endedAt time.Time, errMsg *string) error {
	query := `
		UPDATE sessions
		SET status = ?, ended_at = ?, error = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, status, endedAt.UTC(), errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	return nil
}

const sessionColumns = `id, status, started_at, ended_at, error, operations`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	session := &Session{}
	err := row.Scan(
		&session.ID,
		&session.Status,
		&session.StartedAt,
		&session.EndedAt,
		&session.Error,
		&session.Operations,
	)
	return session, err
}

// GetSession retrieves a session by ID. A unique ID prefix is accepted.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	session, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	query = `SELECT ` + sessionColumns + ` FROM sessions WHERE id LIKE ? ESCAPE '\' LIMIT 2`
	rows, err := s.db.QueryContext(ctx, query, escapeLike(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	defer rows.Close()

	var matches []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		matches = append(matches, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("session prefix %s is ambiguous", id)
	}
}

// ListSessions returns sessions, most recent first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit, offset int) ([]*Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// DeleteSessionsBefore removes sessions started before the given time, with
// their operations, and returns how many sessions were removed.
func (s *SQLiteStore) DeleteSessionsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE started_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// AppendOperation appends an executed operation to its session's log.
func (s *SQLiteStore) AppendOperation(ctx context.Context, record *OperationRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO operations (session_id, seq, operation, status, message, error, pending, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		record.SessionID,
		record.Seq,
		record.Operation,
		record.Status,
		record.Message,
		record.Error,
		record.Pending,
		record.StartedAt.UTC(),
		record.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to append operation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get operation ID: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET operations = operations + 1 WHERE id = ?`, record.SessionID); err != nil {
		return fmt.Errorf("failed to count operation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit operation: %w", err)
	}

	record.ID = id
	return nil
}

// ListOperations returns the operation log of a session in execution order.
func (s *SQLiteStore) ListOperations(ctx context.Context, sessionID string) ([]*OperationRecord, error) {
	query := `
		SELECT id, session_id, seq, operation, status, message, error, pending, started_at, duration_ms
		FROM operations
		WHERE session_id = ?
		ORDER BY seq
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	records := []*OperationRecord{}
	for rows.Next() {
		record := &OperationRecord{}
		var durationMS int64
		err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.Seq,
			&record.Operation,
			&record.Status,
			&record.Message,
			&record.Error,
			&record.Pending,
			&record.StartedAt,
			&durationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		record.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}

	return records, nil
}

// HealthCheck verifies the database connection.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
