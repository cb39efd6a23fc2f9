package stores

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// SessionStatus represents the outcome of a session.
type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// OperationStatus represents the outcome of one executed operation.
type OperationStatus string

const (
	OperationStatusCompleted OperationStatus = "completed"
	OperationStatusFailed    OperationStatus = "failed"
)

// Session is one interactive run of the dispatcher.
type Session struct {
	ID         string        `json:"id" yaml:"id"`
	Status     SessionStatus `json:"status" yaml:"status"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	EndedAt    *time.Time    `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	Error      *string       `json:"error,omitempty" yaml:"error,omitempty"`
	Operations int           `json:"operations" yaml:"operations"`
}

// Duration returns how long the session ran, zero while it is running.
func (s *Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// OperationRecord is one entry of a session's executed-operation log.
type OperationRecord struct {
	ID        int64           `json:"id" yaml:"-"`
	SessionID string          `json:"session_id" yaml:"-"`
	Seq       int             `json:"seq" yaml:"seq"`
	Operation string          `json:"operation" yaml:"operation"`
	Status    OperationStatus `json:"status" yaml:"status"`
	Message   string          `json:"message,omitempty" yaml:"message,omitempty"`
	Error     *string         `json:"error,omitempty" yaml:"error,omitempty"`
	Pending   int             `json:"pending" yaml:"pending"`
	StartedAt time.Time       `json:"started_at" yaml:"started_at"`
	Duration  time.Duration   `json:"duration" yaml:"duration"`
}

// Store defines the persistence layer of the session journal.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Sessions
	CreateSession(ctx context.Context, session *Session) error
	FinishSession(ctx context.Context, id string, status SessionStatus, endedAt time.Time, errMsg *string) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, limit, offset int) ([]*Session, error)
	DeleteSessionsBefore(ctx context.Context, before time.Time) (int64, error)

	// Operations
	AppendOperation(ctx context.Context, record *OperationRecord) error
	ListOperations(ctx context.Context, sessionID string) ([]*OperationRecord, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
