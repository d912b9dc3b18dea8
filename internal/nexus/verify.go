package nexus

import (
	"context"
	"fmt"
	"time"
)

// VerificationResult reports a read-side digest comparison. It never repairs
// anything: a mismatch is evidence, not a trigger.
type VerificationResult struct {
	IsValid       bool      `json:"is_valid"`
	Kind          DataKind  `json:"kind"`
	OriginalID    string    `json:"original_id"`
	CurrentDigest string    `json:"current_digest"`
	StoredDigest  string    `json:"stored_digest"`
	AnchoredAt    time.Time `json:"anchored_at"`
	CheckedAt     time.Time `json:"checked_at"`
}

// VerifyDataIntegrity recomputes the canonical digest of the current
// relational record and compares it against the most recent anchored digest.
//
// A missing relational record is ErrNotFound regardless of what the ledger
// holds — a tombstoned id verifies identically to one that never existed.
// Retry exhaustion against the ledger is ErrAnchorPending. On a digest
// mismatch the result is returned alongside an ErrIntegrityMismatch-kind
// error so callers get both the category and the two digests.
func (s *Service) VerifyDataIntegrity(ctx context.Context, owner, kind, id string) (*VerificationResult, error) {
	var current string

	switch DataKind(kind) {
	case KindContact:
		c, err := s.store.GetContact(ctx, owner, id)
		if err != nil {
			return nil, fmt.Errorf("loading contact: %w", err)
		}
		if c == nil {
			return nil, wrapErr(ErrNotFound, "contact not found", nil)
		}
		current = ContactDigest(c)
	case KindApplication:
		a, err := s.store.GetBuilderApplication(ctx, owner, id)
		if err != nil {
			return nil, fmt.Errorf("loading application: %w", err)
		}
		if a == nil {
			return nil, wrapErr(ErrNotFound, "application not found", nil)
		}
		current = ApplicationDigest(a)
	default:
		return nil, wrapErr(ErrValidation, fmt.Sprintf("kind %q is not verifiable", kind), nil)
	}

	anchored, err := s.queryMostRecent(ctx, LedgerFilter{
		Kind:       DataKind(kind),
		Owner:      owner,
		OriginalID: id,
	})
	if err != nil {
		return nil, err
	}

	res := &VerificationResult{
		IsValid:       current == anchored.Digest,
		Kind:          DataKind(kind),
		OriginalID:    id,
		CurrentDigest: current,
		StoredDigest:  anchored.Digest,
		AnchoredAt:    anchored.CreatedAt,
		CheckedAt:     s.clock.Now().UTC(),
	}

	if !res.IsValid {
		s.logger.Warn("integrity mismatch", "kind", kind, "id", id,
			"current", res.CurrentDigest, "stored", res.StoredDigest)
		return res, wrapErr(ErrIntegrityMismatch, "digest does not match anchored value", nil)
	}

	s.logger.Debug("integrity verified", "kind", kind, "id", id)
	return res, nil
}

// queryMostRecent polls the ledger with the bounded retry policy. This is
// the only intentional retry loop in the core; total wait is capped at
// Attempts times Delay.
func (s *Service) queryMostRecent(ctx context.Context, f LedgerFilter) (*HashRecord, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		recs, err := s.ledger.Query(ctx, f)
		if err != nil {
			lastErr = err
		} else if rec := MostRecent(recs); rec != nil {
			return rec, nil
		}

		if attempt < s.retry.Attempts {
			s.logger.Debug("anchor not indexed yet, retrying",
				"kind", string(f.Kind), "id", f.OriginalID, "attempt", attempt)
			select {
			case <-time.After(s.retry.Delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, wrapErr(ErrAnchorPending, "no anchored record after retries", lastErr)
}
