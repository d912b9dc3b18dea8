package nexus

import (
	"context"
	"time"
)

// PendingAction correlates a front-end command with a follow-up event, e.g.
// "the next photo this owner sends belongs to contact X". Entries expire;
// expiry is checked on read, so stale state can never leak into a later
// conversation.
type PendingAction struct {
	Action    string    `json:"action"`
	ContactID string    `json:"contact_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the action is past its deadline at time now.
func (p *PendingAction) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// SessionStore holds at most one PendingAction per owner.
// Get returns nil for absent or expired entries; expired entries are removed.
type SessionStore interface {
	Put(ctx context.Context, owner string, action PendingAction) error
	Get(ctx context.Context, owner string) (*PendingAction, error)
	Delete(ctx context.Context, owner string) error
}
