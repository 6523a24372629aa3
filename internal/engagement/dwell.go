package engagement

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/zine-studio/zine-landing/internal/telemetry"
)

// DwellThresholds are the time-on-page marks reported, in seconds, ascending.
var DwellThresholds = []int{30, 60, 120}

// DefaultCheckInterval is how often Run samples elapsed time. A crossing is
// reported at most one interval late.
const DefaultCheckInterval = 5 * time.Second

// DwellTracker latches time-on-page thresholds and reports page exit.
type DwellTracker struct {
	mu      sync.Mutex
	start   time.Time
	latches Latches
	exited  bool
	stopped bool
	done    chan struct{}
	emitter Emitter
}

// NewDwellTracker starts observation at start.
func NewDwellTracker(emitter Emitter, start time.Time) *DwellTracker {
	return &DwellTracker{
		start:   start,
		done:    make(chan struct{}),
		emitter: emitter,
	}
}

// Elapsed is the time since observation began, as of now.
func (d *DwellTracker) Elapsed(now time.Time) time.Duration {
	return now.Sub(d.start)
}

// Check latches every threshold elapsed time has reached and returns the
// events it fired.
func (d *DwellTracker) Check(ctx context.Context, now time.Time) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || d.exited {
		return nil
	}

	elapsed := now.Sub(d.start).Seconds()
	var fired []string
	for i, threshold := range DwellThresholds {
		if elapsed < float64(threshold) || !d.latches.Set(i) {
			continue
		}
		name := "time_on_page_" + strconv.Itoa(threshold) + "s"
		fired = append(fired, name)
		if d.emitter != nil {
			d.emitter.Emit(ctx, name, telemetry.Props{
				telemetry.PropCategory: "engagement",
				telemetry.PropValue:    threshold,
			})
		}
	}
	return fired
}

// Exit emits page_exit with the rounded seconds spent on the page. It fires
// at most once and never after Stop.
func (d *DwellTracker) Exit(ctx context.Context, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || d.exited {
		return false
	}
	d.exited = true

	spent := int(math.Round(now.Sub(d.start).Seconds()))
	if d.emitter != nil {
		d.emitter.Emit(ctx, "page_exit", telemetry.Props{
			telemetry.PropCategory: "engagement",
			telemetry.PropLabel:    "time_spent",
			telemetry.PropValue:    spent,
		})
	}
	return true
}

// Run calls Check every interval until ctx is done or Stop is called.
func (d *DwellTracker) Run(ctx context.Context, interval time.Duration, now func() time.Time) {
	d.RunWhile(ctx, interval, now, nil)
}

// RunWhile is Run that also returns as soon as alive reports false for a
// sample time. No check is made for that sample.
func (d *DwellTracker) RunWhile(ctx context.Context, interval time.Duration, now func() time.Time, alive func(time.Time) bool) {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	if now == nil {
		now = time.Now
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case <-ticker.C:
			t := now()
			if alive != nil && !alive(t) {
				return
			}
			d.Check(ctx, t)
		}
	}
}

// Stop cancels the periodic check and detaches exit reporting.
func (d *DwellTracker) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	close(d.done)
}

// Latches returns a snapshot of the latch state.
func (d *DwellTracker) Latches() Latches {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latches
}
