// Package audit records security-relevant decisions as immutable events in
// an append-only log. Each event is durable before Log returns: the record
// is written and synced, so a crash immediately after an operation does not
// lose its audit trail. The running process never rewrites or deletes
// earlier records; retention and rotation are operational concerns outside
// this package, and so is tamper evidence beyond the append-only file
// property (permissions, filesystem immutability).
package audit

import (
	"time"
)

// Event types emitted by the access controller and manager operations.
const (
	EventAccessGranted = "access_granted"
	EventAccessDenied  = "access_denied"
	EventRateLimited   = "rate_limited"
	EventRead          = "credential_read"
	EventWrite         = "credential_write"
	EventDelete        = "credential_delete"
	EventList          = "credential_list"
	EventMigration     = "credential_migration"
)

// Outcomes attached to events.
const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// Event is an immutable audit record. It is created at the moment of an
// authorization decision or provider operation and never mutated afterwards.
// Context carries small diagnostic strings; secret values must never appear
// in it.
type Event struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventType     string            `json:"event_type"`
	User          string            `json:"user"`
	CredentialKey string            `json:"credential_key,omitempty"`
	Outcome       string            `json:"outcome"`
	Context       map[string]string `json:"context,omitempty"`
}

// Filter selects events for Query. Zero fields match everything; time
// bounds are inclusive at Since and exclusive at Until.
type Filter struct {
	EventType     string
	User          string
	CredentialKey string
	Since         time.Time
	Until         time.Time
}

func (f Filter) matches(e Event) bool {
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.User != "" && e.User != f.User {
		return false
	}
	if f.CredentialKey != "" && e.CredentialKey != f.CredentialKey {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.Timestamp.Before(f.Until) {
		return false
	}
	return true
}

// Logger is an append-only audit sink. Query returns matching events in
// chronological order (oldest first); callers wanting most-recent-first must
// reverse.
type Logger interface {
	Log(event Event) error
	Query(filter Filter, limit int) ([]Event, error)
}
