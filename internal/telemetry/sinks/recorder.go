package sinks

import (
	"context"

	"github.com/zine-studio/zine-landing/internal/store"
	"github.com/zine-studio/zine-landing/internal/telemetry"
)

// EventWriter is the slice of the store the recorder needs.
type EventWriter interface {
	RecordEvent(ctx context.Context, e *store.EventRecord) error
}

// Recorder keeps a local copy of every event in the database. Experiment
// results are computed from these rows.
type Recorder struct {
	w EventWriter
}

func NewRecorder(w EventWriter) *Recorder {
	return &Recorder{w: w}
}

func (r *Recorder) Name() string { return "recorder" }

// Send writes the event synchronously, attributing it to the visitor carried
// by ctx. It detaches from ctx cancellation so an event emitted as a request
// finishes is still kept.
func (r *Recorder) Send(ctx context.Context, e telemetry.Event) error {
	v := telemetry.VisitorFromContext(ctx)
	return r.w.RecordEvent(context.WithoutCancel(ctx), &store.EventRecord{
		Name:       e.Name,
		VisitorID:  v.VisitorID,
		SessionID:  v.SessionID,
		Category:   e.Category(),
		Label:      e.Label(),
		Properties: e.Properties,
		CreatedAt:  e.OccurredAt,
	})
}
