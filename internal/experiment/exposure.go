package experiment

import (
	"context"

	"go.uber.org/zap"

	"github.com/zine-studio/zine-landing/internal/persist"
	"github.com/zine-studio/zine-landing/internal/telemetry"
)

// ExposureEvent is the telemetry event emitted when a visitor sees an arm.
const ExposureEvent = "ab_test_view"

// Emitter is the subset of telemetry.Emitter the trackers need.
type Emitter interface {
	Emit(ctx context.Context, name string, props telemetry.Props)
}

// ExposureTracker emits at most one exposure event per (experiment, value)
// per browsing session.
type ExposureTracker struct {
	markers persist.Persistence
	emitter Emitter
	log     *zap.Logger
}

// NewExposureTracker builds a tracker over session-scoped markers.
func NewExposureTracker(markers persist.Persistence, emitter Emitter) *ExposureTracker {
	if markers == nil {
		markers = persist.Nop{}
	}
	return &ExposureTracker{markers: markers, emitter: emitter, log: zap.L()}
}

// MarkerKey is the session marker for one arm of exp.
func MarkerKey(exp Experiment, value string) string {
	return exp.StorageKey + "_session_tracked_" + value
}

// RecordOnce emits the exposure event unless this session already has.
// Best effort: marker read/write failures are swallowed. A failed read
// skips emission rather than risk a duplicate.
func (t *ExposureTracker) RecordOnce(ctx context.Context, a Assignment) bool {
	key := MarkerKey(a.Experiment, a.Value)

	_, seen, err := t.markers.Get(key)
	if err != nil {
		t.log.Debug("exposure marker read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if seen {
		return false
	}

	if t.emitter != nil {
		t.emitter.Emit(ctx, ExposureEvent, ExposureProps(a))
	}

	if err := t.markers.Set(key, "1", 0); err != nil {
		t.log.Debug("exposure marker write failed", zap.String("key", key), zap.Error(err))
	}
	return true
}

// ExposureProps are the properties carried by an exposure event.
func ExposureProps(a Assignment) telemetry.Props {
	props := telemetry.Props{
		telemetry.PropCategory: "experiment",
		telemetry.PropLabel:    a.Label(),
		"test_name":            a.Experiment.Name,
		"variant":              a.Value,
	}
	if a.Experiment.ValueKey != "" {
		props[a.Experiment.ValueKey] = a.Int()
	}
	return props
}
