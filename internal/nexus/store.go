package nexus

import (
	"context"
	"time"
)

// ContactStore is the authoritative, mutable record store. Every method is
// owner-scoped: implementations must include the owner predicate in every
// query so cross-owner access is impossible by construction.
//
// Absence is not an error: lookups return nil and DeleteContact returns
// false. Connection-level failures wrap ErrStorageUnavailable.
type ContactStore interface {
	// InsertContact stores a new contact. ID and CreatedAt are assigned by
	// the caller (the orchestrator's IDGenerator/Clock seams) before insert.
	InsertContact(ctx context.Context, c *Contact) error

	// ListContacts returns all contacts for the owner, newest first.
	ListContacts(ctx context.Context, owner string) ([]*Contact, error)

	// GetContact returns one contact, or nil if absent or not owned.
	GetContact(ctx context.Context, owner, id string) (*Contact, error)

	// SearchContacts returns the owner's contacts where query is a
	// case-insensitive substring of any text field or tag.
	SearchContacts(ctx context.Context, owner, query string) ([]*Contact, error)

	// DeleteContact removes a contact. Returns false if absent or not owned.
	DeleteContact(ctx context.Context, owner, id string) (bool, error)

	// AttachPhoto sets the photo reference triple on an existing contact.
	// Returns false if absent or not owned.
	AttachPhoto(ctx context.Context, owner, id string, ref PhotoRef) (bool, error)

	// Stats summarizes the owner's contact book. Recency windows are
	// computed relative to now, which the orchestrator takes from its Clock
	// so implementations never consult wall time themselves.
	Stats(ctx context.Context, owner string, now time.Time) (*Stats, error)

	// InsertBuilderApplication stores a new application. Uniqueness per
	// owner is enforced by the orchestrator, not here.
	InsertBuilderApplication(ctx context.Context, a *BuilderApplication) error

	// FindBuilderApplicationByOwner returns the owner's application, or nil.
	FindBuilderApplicationByOwner(ctx context.Context, owner string) (*BuilderApplication, error)

	// GetBuilderApplication returns one application, or nil if absent or not owned.
	GetBuilderApplication(ctx context.Context, owner, id string) (*BuilderApplication, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
