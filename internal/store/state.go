package store

import (
	"context"
	"time"
)

// ScopedState exposes one owner's rows in one scope as a key-value store.
// It satisfies persist.Persistence.
type ScopedState struct {
	ctx   context.Context
	store *SQLiteStore
	scope Scope
	owner string
}

// VisitorState returns the durable per-visitor store.
func (s *SQLiteStore) VisitorState(ctx context.Context, visitorID string) *ScopedState {
	return &ScopedState{ctx: ctx, store: s, scope: ScopeVisitor, owner: visitorID}
}

// SessionState returns the per-session store used for exposure markers.
func (s *SQLiteStore) SessionState(ctx context.Context, sessionID string) *ScopedState {
	return &ScopedState{ctx: ctx, store: s, scope: ScopeSession, owner: sessionID}
}

func (st *ScopedState) Get(key string) (string, bool, error) {
	return st.store.GetState(st.ctx, st.scope, st.owner, key)
}

func (st *ScopedState) Set(key, value string, ttl time.Duration) error {
	return st.store.SetState(st.ctx, st.scope, st.owner, key, value, ttl)
}

func (st *ScopedState) Remove(key string) error {
	return st.store.RemoveState(st.ctx, st.scope, st.owner, key)
}
