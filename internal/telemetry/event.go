// Package telemetry is the single funnel through which analytics events leave
// the application. Every event is fanned out to whichever sinks are
// configured; no sink can affect another and Emit never fails.
package telemetry

import (
	"maps"
	"time"
)

// Well-known property keys.
const (
	PropCategory = "category"
	PropLabel    = "label"
	PropValue    = "value"
)

// DefaultCategory is used for the derived event_category when an event does
// not carry its own category.
const DefaultCategory = "engagement"

// Props is a free-form property bag.
type Props map[string]any

// Event is one analytics event. It is never persisted by the emitter itself.
type Event struct {
	Name       string
	Properties Props
	OccurredAt time.Time
}

// Category returns the category property, or DefaultCategory.
func (e Event) Category() string {
	if c, ok := e.Properties[PropCategory].(string); ok && c != "" {
		return c
	}
	return DefaultCategory
}

// Label returns the label property as a string, or "" when absent.
func (e Event) Label() string {
	if l, ok := e.Properties[PropLabel].(string); ok {
		return l
	}
	return ""
}

// TrackPayload is the generic collector's calling convention:
// track(name, properties).
type TrackPayload struct {
	Name       string `json:"name"`
	Properties Props  `json:"properties,omitempty"`
}

// Track builds the generic collector payload.
func Track(e Event) TrackPayload {
	return TrackPayload{Name: e.Name, Properties: cloneProps(e.Properties)}
}

// Flatten builds the tag-manager parameter map: derived event_category,
// event_label and value first, then every property merged on top.
func Flatten(e Event) map[string]any {
	out := make(map[string]any, len(e.Properties)+3)
	out["event_category"] = e.Category()
	if l, ok := e.Properties[PropLabel]; ok {
		out["event_label"] = l
	} else {
		out["event_label"] = nil
	}
	out["value"] = e.Properties[PropValue]
	maps.Copy(out, e.Properties)
	return out
}

func cloneProps(p Props) Props {
	if len(p) == 0 {
		return Props{}
	}
	return maps.Clone(p)
}
