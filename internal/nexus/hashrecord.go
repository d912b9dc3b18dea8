package nexus

import (
	"context"
	"time"
)

// DataKind tags what a HashRecord anchors.
type DataKind string

const (
	KindContact     DataKind = "contact"
	KindApplication DataKind = "application"
	KindImage       DataKind = "image"
	KindTombstone   DataKind = "tombstone"
)

// ValidDataKind reports whether s names a known data kind.
func ValidDataKind(s string) bool {
	switch DataKind(s) {
	case KindContact, KindApplication, KindImage, KindTombstone:
		return true
	}
	return false
}

// HashRecord is one anchored digest event. Records are append-only: the set
// of records for a given (kind, original id) forms a history ordered by
// CreatedAt, and corrections are new entries, never updates.
type HashRecord struct {
	ID         string   `json:"id"`
	Kind       DataKind `json:"kind"`
	OriginalID string   `json:"original_id"`
	Owner      string   `json:"owner"`
	Digest     string   `json:"digest"`

	// ObjectHash is set when anchoring binary content: the object store's
	// own content hash, kept alongside the anchored digest.
	ObjectHash string `json:"object_hash,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Verified records that the digest matched the source at anchoring time.
	// It is always true at creation and never an ongoing assertion.
	Verified bool `json:"verified"`
}

// LedgerFilter selects hash records by exact attribute match.
type LedgerFilter struct {
	Kind       DataKind
	Owner      string
	OriginalID string
}

// Ledger is the append-only hash anchoring store. Append is durable on
// return. Query order is unspecified; indexing may lag appends, so a query
// immediately after an append is not guaranteed to see the record.
type Ledger interface {
	Append(ctx context.Context, rec *HashRecord) error
	Query(ctx context.Context, f LedgerFilter) ([]*HashRecord, error)

	// Ping verifies the ledger is reachable.
	Ping(ctx context.Context) error
}

// MostRecent returns the record with the latest CreatedAt, or nil for an
// empty slice. Ties resolve to the later element, matching append order.
func MostRecent(recs []*HashRecord) *HashRecord {
	var best *HashRecord
	for _, r := range recs {
		if best == nil || !r.CreatedAt.Before(best.CreatedAt) {
			best = r
		}
	}
	return best
}
