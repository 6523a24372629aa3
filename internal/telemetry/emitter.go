package telemetry

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Sink receives events. Send should return quickly; sinks that talk to the
// network queue internally.
type Sink interface {
	Name() string
	Send(ctx context.Context, e Event) error
}

// SinkFunc adapts a plain function into a Sink.
type SinkFunc struct {
	ID string
	Fn func(ctx context.Context, e Event) error
}

func (f SinkFunc) Name() string { return f.ID }

func (f SinkFunc) Send(ctx context.Context, e Event) error {
	if f.Fn == nil {
		return nil
	}
	return f.Fn(ctx, e)
}

// Emitter fans events out to its sinks.
type Emitter struct {
	sinks      []Sink
	diagnostic bool
	log        *zap.Logger
	clock      func() time.Time
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithDiagnostics writes every emitted event to the local log at debug level.
func WithDiagnostics(on bool) Option {
	return func(e *Emitter) { e.diagnostic = on }
}

// WithLogger overrides the logger (defaults to zap.L()).
func WithLogger(l *zap.Logger) Option {
	return func(e *Emitter) { e.log = l }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) { e.clock = now }
}

// NewEmitter builds an emitter over the given sinks. Nil sinks are dropped.
func NewEmitter(sinks []Sink, opts ...Option) *Emitter {
	e := &Emitter{clock: time.Now}
	for _, s := range sinks {
		if s != nil {
			e.sinks = append(e.sinks, s)
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = zap.L()
	}
	return e
}

// Sinks returns the names of the registered sinks.
func (e *Emitter) Sinks() []string {
	if e == nil {
		return nil
	}
	names := make([]string, 0, len(e.sinks))
	for _, s := range e.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Emit dispatches name/props to every sink. It never fails and never panics;
// a nil emitter is a valid no-op.
func (e *Emitter) Emit(ctx context.Context, name string, props Props) {
	if e == nil || name == "" {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	evt := Event{
		Name:       name,
		Properties: cloneProps(props),
		OccurredAt: e.clock(),
	}

	if e.diagnostic {
		e.log.Debug("analytics event",
			zap.String("event", evt.Name),
			zap.Any("properties", evt.Properties),
		)
	}

	for _, s := range e.sinks {
		// Each sink gets its own copy so one cannot mutate another's view.
		cp := evt
		cp.Properties = cloneProps(evt.Properties)
		if err := e.send(ctx, s, cp); err != nil {
			e.log.Warn("analytics sink failed",
				zap.String("sink", s.Name()),
				zap.String("event", evt.Name),
				zap.Error(err),
			)
		}
	}
}

func (e *Emitter) send(ctx context.Context, s Sink, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("sink panicked: %v", r)
		}
	}()
	return s.Send(ctx, evt)
}
