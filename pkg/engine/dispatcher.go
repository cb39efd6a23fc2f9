package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultFetchConcurrency is the number of kits fetched in parallel by list-and-choose.
const DefaultFetchConcurrency = 4

// TracerName is the instrumentation name of the dispatcher's spans.
const TracerName = "github.com/kitinfo/kitinfo/pkg/engine"

// handler executes one operation. It receives the result of the previous
// operation and returns the result handed to the next one.
type handler func(ctx context.Context, in Result) (Result, error)

// Dispatcher runs a session: it pops operations off the queue, resolves each one
// to its handler, and threads the result of one handler into the next until
// OpTerminate is reached. A Dispatcher runs a single session and is not safe for
// concurrent use.
type Dispatcher struct {
	gateway   Gateway
	surface   Surface
	publisher EventPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer

	// fetchConcurrency bounds the parallel kit fetch in list-and-choose
	fetchConcurrency int

	sessionID string
	plan      []Operation

	queue    *Queue
	last     Result
	log      []Operation
	handlers map[Operation]handler

	// note is an optional message attached to the event of the running operation
	note string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for operation tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithPublisher sets the publisher receiving session and operation events.
func WithPublisher(publisher EventPublisher) Option {
	return func(d *Dispatcher) {
		d.publisher = publisher
	}
}

// WithTracer sets the OpenTelemetry tracer. The global tracer is used by default.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// WithFetchConcurrency bounds how many kits list-and-choose fetches at once.
// Values below 1 are ignored.
func WithFetchConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.fetchConcurrency = n
		}
	}
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) Option {
	return func(d *Dispatcher) {
		if id != "" {
			d.sessionID = id
		}
	}
}

// WithPlan replaces the initial plan. It is mostly useful in tests.
func WithPlan(ops ...Operation) Option {
	return func(d *Dispatcher) {
		d.plan = append([]Operation(nil), ops...)
	}
}

// New creates a dispatcher for one session.
func New(gateway Gateway, surface Surface, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		gateway:          gateway,
		surface:          surface,
		logger:           zerolog.Nop(),
		tracer:           otel.Tracer(TracerName),
		fetchConcurrency: DefaultFetchConcurrency,
		sessionID:        uuid.New().String(),
		plan:             DefaultPlan(),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.logger = d.logger.With().Str("session_id", d.sessionID).Logger()
	d.queue = NewQueue(d.plan...)
	d.handlers = d.bindHandlers()

	return d
}

// SessionID returns the identifier of the session.
func (d *Dispatcher) SessionID() string {
	return d.sessionID
}

// Log returns the operations executed so far, in order. After a normal run the
// last entry is OpTerminate.
func (d *Dispatcher) Log() []Operation {
	return append([]Operation(nil), d.log...)
}

// Pending returns the operations still queued.
func (d *Dispatcher) Pending() []Operation {
	return d.queue.Snapshot()
}

// Last returns the result of the most recently executed operation.
func (d *Dispatcher) Last() Result {
	return d.last
}

// Run executes the session until OpTerminate is reached.
//
// An authentication failure is reported through Surface.Fatal and returned
// without calling NotifyEnd. Exhausted input ends the session normally.
func (d *Dispatcher) Run(ctx context.Context) error {
	started := time.Now()
	ctx, span := d.tracer.Start(ctx, "session",
		trace.WithAttributes(attribute.String("session.id", d.sessionID)))
	defer span.End()

	d.surface.NotifyStart()
	d.publish(ctx, &Event{
		Type:    EventTypeSessionStarted,
		Message: "Session started",
		Level:   "info",
		Pending: d.queue.Len(),
	})
	d.logger.Info().Strs("plan", operationNamesOf(d.queue.Snapshot())).Msg("Session started")

	for {
		if err := ctx.Err(); err != nil {
			return d.fail(ctx, span, started, err)
		}

		op := d.queue.PopFront()
		d.log = append(d.log, op)

		if op == OpTerminate {
			d.terminate(ctx)
			break
		}

		next, err := d.execute(ctx, op, len(d.log))
		if err != nil {
			if errors.Is(err, ErrInputClosed) {
				d.logger.Debug().Str("operation", op.String()).Msg("Input closed, terminating")
				d.log = append(d.log, OpTerminate)
				d.terminate(ctx)
				break
			}

			if IsAuthentication(err) {
				d.surface.Fatal(msgAuthFailed)
				d.surface.Fatal(msgAuthHint)
				return d.fail(ctx, span, started, err)
			}

			if ctxErr := ctx.Err(); ctxErr != nil {
				return d.fail(ctx, span, started, ctxErr)
			}

			d.surface.ShowError(Message(err))
			d.surface.NotifyEnd()
			return d.fail(ctx, span, started, err)
		}

		d.last = next
	}

	d.surface.NotifyEnd()
	d.publish(ctx, &Event{
		Type:     EventTypeSessionCompleted,
		Message:  "Session completed",
		Level:    "info",
		Duration: time.Since(started),
	})
	d.logger.Info().
		Int("operations", len(d.log)).
		Dur("duration", time.Since(started)).
		Msg("Session completed")

	return nil
}

// execute runs the handler bound to op against the current result.
func (d *Dispatcher) execute(ctx context.Context, op Operation, seq int) (Result, error) {
	h, ok := d.handlers[op]
	if !ok {
		return None(), NewInternalError("no handler bound to operation", nil).
			WithOperation(op.String())
	}

	ctx, span := d.tracer.Start(ctx, "operation."+op.String(),
		trace.WithAttributes(
			attribute.String("operation", op.String()),
			attribute.Int("seq", seq),
			attribute.String("input", d.last.String()),
		))
	defer span.End()

	d.note = ""
	start := time.Now()
	out, err := h(ctx, d.last)
	duration := time.Since(start)

	event := &Event{
		Type:      EventTypeOperationCompleted,
		Operation: op,
		Seq:       seq,
		Message:   d.note,
		Level:     "debug",
		Duration:  duration,
		Pending:   d.queue.Len(),
	}

	if err != nil {
		var engineErr *EngineError
		if errors.As(err, &engineErr) && engineErr.Operation == "" {
			engineErr.WithOperation(op.String())
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, Message(err))

		if !errors.Is(err, ErrInputClosed) {
			event.Type = EventTypeOperationFailed
			event.Level = "error"
			event.Error = err.Error()
		}
	}

	d.publish(ctx, event)
	d.logger.Debug().
		Str("operation", op.String()).
		Int("seq", seq).
		Dur("duration", duration).
		Stringer("result", out).
		Strs("pending", operationNamesOf(d.queue.Snapshot())).
		Err(err).
		Msg("Operation executed")

	return out, err
}

// terminate records the terminal operation.
func (d *Dispatcher) terminate(ctx context.Context) {
	d.publish(ctx, &Event{
		Type:      EventTypeOperationCompleted,
		Operation: OpTerminate,
		Seq:       len(d.log),
		Level:     "debug",
		Pending:   d.queue.Len(),
	})
}

// fail records a session that ended with err and returns it.
func (d *Dispatcher) fail(ctx context.Context, span trace.Span, started time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, Message(err))

	// The session context may already be cancelled; the failure is still recorded.
	d.publish(context.WithoutCancel(ctx), &Event{
		Type:     EventTypeSessionFailed,
		Message:  "Session failed",
		Level:    "error",
		Duration: time.Since(started),
		Error:    err.Error(),
	})
	d.logger.Error().Err(err).Int("operations", len(d.log)).Msg("Session failed")

	return err
}

// publish sends an event, filling in identity fields. Publishing never fails the session.
func (d *Dispatcher) publish(ctx context.Context, event *Event) {
	if d.publisher == nil {
		return
	}

	event.ID = uuid.New().String()
	event.SessionID = d.sessionID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.Warn().Err(err).Str("event", string(event.Type)).Msg("Failed to publish event")
	}
}

func operationNamesOf(ops []Operation) []string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.String()
	}
	return names
}
