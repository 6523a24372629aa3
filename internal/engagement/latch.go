// Package engagement turns scroll and dwell observations for a page view into
// one-time threshold events.
package engagement

import (
	"context"

	"github.com/zine-studio/zine-landing/internal/telemetry"
)

// Emitter is the subset of telemetry.Emitter the trackers need.
type Emitter interface {
	Emit(ctx context.Context, name string, props telemetry.Props)
}

// Latches is a set of one-way flags indexed by threshold position.
type Latches uint8

// Set reports whether bit i was newly set.
func (l *Latches) Set(i int) bool {
	mask := Latches(1) << i
	if *l&mask != 0 {
		return false
	}
	*l |= mask
	return true
}

// IsSet reports whether bit i has been set.
func (l Latches) IsSet(i int) bool {
	return l&(Latches(1)<<i) != 0
}

// Count is the number of set latches.
func (l Latches) Count() int {
	n := 0
	for l != 0 {
		n += int(l & 1)
		l >>= 1
	}
	return n
}
