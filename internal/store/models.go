package store

import "time"

// Scope separates visitor-lifetime state from session-lifetime state.
type Scope string

const (
	ScopeVisitor Scope = "visitor"
	ScopeSession Scope = "session"
)

// SessionTTL bounds session-scope rows written without a TTL. The session
// cookie has no expiry, so a session is treated as over after a day.
const SessionTTL = 24 * time.Hour

// EventRecord is an analytics event as recorded by the local sink.
type EventRecord struct {
	ID         int64
	Name       string
	VisitorID  string
	SessionID  string
	Category   string
	Label      string
	Properties map[string]any // Encoded as JSON
	CreatedAt  time.Time
}

// WaitlistEntry is one waitlist submission.
type WaitlistEntry struct {
	ID         int64
	Email      string
	Style      string
	Contact    string            // Optional handle or secondary email
	Arms       map[string]string // experiment name -> value at submission time
	VisitorID  string
	UserAgent  string
	RemoteAddr string
	ClientTime string // Timestamp as sent by the browser, unparsed
	CreatedAt  time.Time
}

// ArmCount is a per-value tally for one experiment.
type ArmCount struct {
	Value string
	Count int
}
