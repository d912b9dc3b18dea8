package nexus

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Canonical digests.
//
// A digest must be reproducible regardless of map or struct iteration order,
// so fields are serialized as "key=value" lines in sorted key order before
// hashing. Empty fields are included: a field changing from "x" to "" must
// change the digest.

// ContactDigest returns the canonical sha256 hex digest of a contact's full
// field set, including the photo reference when present. ID, owner and
// creation time are part of the digest; a record copied to another owner or
// re-created under a new ID does not verify.
func ContactDigest(c *Contact) string {
	fields := map[string]string{
		"id":         c.ID,
		"owner":      c.Owner,
		"name":       c.Name,
		"position":   c.Position,
		"company":    c.Company,
		"email":      c.Email,
		"phone":      c.Phone,
		"telegram":   c.Telegram,
		"linkedin":   c.LinkedIn,
		"github":     c.GitHub,
		"location":   c.Location,
		"goal":       c.Goal,
		"notes":      c.Notes,
		"tags":       canonicalTags(c.Tags),
		"priority":   string(c.Priority),
		"source":     c.Source,
		"created_at": canonicalTime(c.CreatedAt),
	}
	if c.Photo != nil {
		fields["photo_locator"] = c.Photo.Locator
		fields["photo_hash"] = c.Photo.ContentHash
		fields["photo_captured_at"] = canonicalTime(c.Photo.CapturedAt)
	} else {
		fields["photo_locator"] = ""
		fields["photo_hash"] = ""
		fields["photo_captured_at"] = ""
	}
	return digestFields(fields)
}

// ApplicationDigest returns the canonical sha256 hex digest of a builder
// application's full field set.
func ApplicationDigest(a *BuilderApplication) string {
	return digestFields(map[string]string{
		"id":         a.ID,
		"owner":      a.Owner,
		"name":       a.Name,
		"email":      a.Email,
		"telegram":   a.Telegram,
		"project":    a.Project,
		"role":       a.Role,
		"experience": a.Experience,
		"motivation": a.Motivation,
		"created_at": canonicalTime(a.CreatedAt),
	})
}

// ImageDigest returns the digest anchored for a stored photo: the sha256 of
// the object store's content hash. This anchors a compact, ledger-friendly
// record rather than the raw bytes; the content hash itself already names
// the stored bytes.
func ImageDigest(contentHash string) string {
	sum := sha256.Sum256([]byte(contentHash))
	return hex.EncodeToString(sum[:])
}

func digestFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
		b.WriteByte('\n')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// canonicalTags joins a sorted copy of the tag set. Tag order in the stored
// record is not significant and must not affect the digest.
func canonicalTags(tags []string) string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// canonicalTime formats with fixed precision and zone. Drivers differ in the
// sub-second precision and location they round-trip, so the digest pins both.
func canonicalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}
