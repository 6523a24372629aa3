package store

import (
	"context"
	"time"
)

// Store defines the storage operations the service relies on
type Store interface {
	// Visitor and session state
	GetState(ctx context.Context, scope Scope, owner, key string) (string, bool, error)
	SetState(ctx context.Context, scope Scope, owner, key, value string, ttl time.Duration) error
	RemoveState(ctx context.Context, scope Scope, owner, key string) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)

	// Analytics events
	RecordEvent(ctx context.Context, e *EventRecord) error
	ListEvents(ctx context.Context, name string) ([]*EventRecord, error)
	ExposureCounts(ctx context.Context, experiment string) ([]ArmCount, error)

	// Waitlist
	AddWaitlistEntry(ctx context.Context, e *WaitlistEntry) (int64, error)
	ListWaitlist(ctx context.Context) ([]*WaitlistEntry, error)
	CountWaitlist(ctx context.Context) (int, error)
	ConversionCounts(ctx context.Context, experiment string) ([]ArmCount, error)

	// Lifecycle
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
