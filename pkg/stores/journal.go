package stores

import (
	"context"
	"fmt"

	"github.com/kitinfo/kitinfo/pkg/engine"
)

// Journal records dispatcher events in a Store. It implements
// engine.EventPublisher.
type Journal struct {
	store Store
}

// NewJournal returns a journal writing to store.
func NewJournal(store Store) *Journal {
	return &Journal{store: store}
}

// Publish maps session events to session rows and operation events to the
// session's operation log.
func (j *Journal) Publish(ctx context.Context, event *engine.Event) error {
	switch event.Type {
	case engine.EventTypeSessionStarted:
		return j.store.CreateSession(ctx, &Session{
			ID:        event.SessionID,
			Status:    SessionStatusRunning,
			StartedAt: event.Timestamp,
		})

	case engine.EventTypeSessionCompleted:
		return j.store.FinishSession(ctx, event.SessionID, SessionStatusCompleted, event.Timestamp, nil)

	case engine.EventTypeSessionFailed:
		return j.store.FinishSession(ctx, event.SessionID, SessionStatusFailed, event.Timestamp, optional(event.Error))

	case engine.EventTypeOperationCompleted, engine.EventTypeOperationFailed:
		status := OperationStatusCompleted
		if event.Type == engine.EventTypeOperationFailed {
			status = OperationStatusFailed
		}
		return j.store.AppendOperation(ctx, &OperationRecord{
			SessionID: event.SessionID,
			Seq:       event.Seq,
			Operation: event.Operation.String(),
			Status:    status,
			Message:   event.Message,
			Error:     optional(event.Error),
			Pending:   event.Pending,
			StartedAt: event.Timestamp.Add(-event.Duration),
			Duration:  event.Duration,
		})

	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
