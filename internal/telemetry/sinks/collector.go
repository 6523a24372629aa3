package sinks

import (
	"context"

	"github.com/zine-studio/zine-landing/internal/telemetry"
)

// Collector forwards events to a generic analytics collector using the
// track(name, properties) convention.
type Collector struct {
	*poster
}

// NewCollector creates a collector sink posting to opts.URL.
func NewCollector(opts HTTPOptions) *Collector {
	return &Collector{poster: newPoster("collector", opts)}
}

func (c *Collector) Name() string { return "collector" }

func (c *Collector) Send(_ context.Context, e telemetry.Event) error {
	return c.enqueue(telemetry.Track(e))
}

// TagManager forwards events to a tag-manager endpoint as a flattened
// parameter map with event_category, event_label and value.
type TagManager struct {
	*poster
}

// TagPayload is the body posted to the tag manager.
type TagPayload struct {
	Event  string         `json:"event"`
	Params map[string]any `json:"params"`
}

// NewTagManager creates a tag-manager sink posting to opts.URL.
func NewTagManager(opts HTTPOptions) *TagManager {
	return &TagManager{poster: newPoster("tag_manager", opts)}
}

func (t *TagManager) Name() string { return "tag_manager" }

func (t *TagManager) Send(_ context.Context, e telemetry.Event) error {
	return t.enqueue(TagPayload{Event: e.Name, Params: telemetry.Flatten(e)})
}
