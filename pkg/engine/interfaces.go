package engine

import (
	"context"
	"errors"
	"time"
)

// Gateway performs kit operations against the remote API.
// Implementations return *EngineError values so the dispatcher can tell an
// authentication failure from a per-request failure or a contract violation.
type Gateway interface {
	// List returns the identifiers of all kits owned by the credential.
	List(ctx context.Context) ([]KitID, error)

	// Get returns the full kit for id.
	Get(ctx context.Context, id KitID) (*Kit, error)

	// Save creates a kit when id is nil and updates the kit otherwise.
	// fields must not contain ReservedIDKey.
	Save(ctx context.Context, fields Fields, id *KitID) (*Kit, error)

	// Delete removes the kit.
	Delete(ctx context.Context, id KitID) error
}

// Surface is the user-facing side of a session.
// Methods that read input return ErrInputClosed once input is exhausted.
type Surface interface {
	// NotifyStart is called once before the first operation runs.
	NotifyStart()

	// NotifyEnd is called once after the session finishes normally.
	NotifyEnd()

	// Choose presents labels in order and returns the index of the chosen one.
	Choose(ctx context.Context, prompt string, labels []string) (int, error)

	// Confirm asks a yes/no question. Unparseable input counts as yes.
	Confirm(ctx context.Context, prompt string) (bool, error)

	// CollectFields prompts for kit attributes. Blank answers are omitted.
	CollectFields(ctx context.Context) (Fields, error)

	// ShowResource displays a kit.
	ShowResource(kit *Kit)

	// ShowDeleted confirms a deletion.
	ShowDeleted()

	// ShowError displays a failed request. message embeds the status code when known.
	ShowError(message string)

	// Warn displays a non-fatal notice.
	Warn(message string)

	// Fatal displays a message that ends the session.
	Fatal(message string)
}

// EventPublisher receives session and operation events.
type EventPublisher interface {
	// Publish delivers an event. Errors are logged by the dispatcher and never
	// interrupt the session.
	Publish(ctx context.Context, event *Event) error
}

// EventType identifies the kind of event.
type EventType string

// Event types.
const (
	EventTypeSessionStarted     EventType = "session.started"
	EventTypeSessionCompleted   EventType = "session.completed"
	EventTypeSessionFailed      EventType = "session.failed"
	EventTypeOperationCompleted EventType = "operation.completed"
	EventTypeOperationFailed    EventType = "operation.failed"
)

// Event describes something that happened during a session.
type Event struct {
	// ID is the unique identifier of the event.
	ID string `json:"id"`

	// SessionID is the session the event belongs to.
	SessionID string `json:"session_id"`

	// Type is the event type.
	Type EventType `json:"type"`

	// Operation is the operation the event refers to, for operation events.
	Operation Operation `json:"operation"`

	// Seq is the position of the operation in the session log, starting at 1.
	Seq int `json:"seq,omitempty"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Level is the severity (debug, info, warn, error).
	Level string `json:"level"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Duration is how long the operation or session took.
	Duration time.Duration `json:"duration,omitempty"`

	// Error is the error message, if any.
	Error string `json:"error,omitempty"`

	// Pending is the number of queued operations after this one.
	Pending int `json:"pending"`
}

// Publishers fans an event out to several publishers.
type Publishers []EventPublisher

// Publish delivers event to every publisher and joins their errors.
func (p Publishers) Publish(ctx context.Context, event *Event) error {
	var errs []error
	for _, pub := range p {
		if pub == nil {
			continue
		}
		if err := pub.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Choice is a menu entry carrying the value returned when it is picked.
type Choice[T any] struct {
	Label string
	Value T
}

// choose presents choices through the surface and returns the picked value.
func choose[T any](ctx context.Context, s Surface, prompt string, choices []Choice[T]) (T, error) {
	var zero T
	if len(choices) == 0 {
		return zero, NewInternalError("no choices to present for "+prompt, nil)
	}

	labels := make([]string, len(choices))
	for i, c := range choices {
		labels[i] = c.Label
	}

	idx, err := s.Choose(ctx, prompt, labels)
	if err != nil {
		return zero, err
	}
	if idx < 0 || idx >= len(choices) {
		return zero, NewInternalError("choice out of range", nil).
			WithDetail("index", idx).
			WithDetail("choices", len(choices))
	}
	return choices[idx].Value, nil
}
