package engagement

import (
	"context"
	"math"
	"strconv"
	"sync"

	"github.com/zine-studio/zine-landing/internal/telemetry"
)

// ScrollThresholds are the scroll-depth percentages reported, ascending.
var ScrollThresholds = []int{25, 50, 75, 90}

// ScrollTracker latches each scroll threshold the first time it is reached.
type ScrollTracker struct {
	mu      sync.Mutex
	latches Latches
	stopped bool
	emitter Emitter
}

func NewScrollTracker(emitter Emitter) *ScrollTracker {
	return &ScrollTracker{emitter: emitter}
}

// ScrollPercent converts a scroll offset into a percentage of the scrollable
// distance. ok is false when the page cannot scroll.
func ScrollPercent(offset, documentHeight, viewportHeight float64) (pct float64, ok bool) {
	denom := documentHeight - viewportHeight
	if denom <= 0 || math.IsNaN(denom) || math.IsInf(denom, 0) || math.IsNaN(offset) {
		return 0, false
	}
	return offset / denom * 100, true
}

// Observe handles one scroll observation and returns the events it fired.
func (s *ScrollTracker) Observe(ctx context.Context, offset, documentHeight, viewportHeight float64) []string {
	pct, ok := ScrollPercent(offset, documentHeight, viewportHeight)
	if !ok {
		return nil
	}
	return s.ObservePercent(ctx, pct)
}

// ObservePercent latches every threshold at or below pct, in ascending order.
func (s *ScrollTracker) ObservePercent(ctx context.Context, pct float64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || math.IsNaN(pct) {
		return nil
	}

	var fired []string
	for i, threshold := range ScrollThresholds {
		if pct < float64(threshold) || !s.latches.Set(i) {
			continue
		}
		name := "scroll_" + strconv.Itoa(threshold)
		fired = append(fired, name)
		if s.emitter != nil {
			s.emitter.Emit(ctx, name, telemetry.Props{telemetry.PropCategory: "engagement"})
		}
	}
	return fired
}

// Latches returns a snapshot of the latch state.
func (s *ScrollTracker) Latches() Latches {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latches
}

// Stop tears the tracker down; later observations are ignored.
func (s *ScrollTracker) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}
