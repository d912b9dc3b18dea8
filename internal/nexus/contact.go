package nexus

import (
	"sort"
	"strings"
	"time"
)

// Priority is the follow-up priority assigned to a contact.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority normalizes a raw priority string. Unknown or empty values
// default to medium.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// PhotoRef points at a photo stored in the object store: the opaque locator,
// the content hash of the stored bytes, and when the photo was captured.
type PhotoRef struct {
	Locator     string    `json:"locator"`
	ContentHash string    `json:"content_hash"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Contact is one acquaintance record, owned by a single user.
// CreatedAt is immutable after insert. The photo reference is set only by the
// photo-attach flow; there is no general field-level update.
type Contact struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	Position  string    `json:"position,omitempty"`
	Company   string    `json:"company,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Telegram  string    `json:"telegram,omitempty"`
	LinkedIn  string    `json:"linkedin,omitempty"`
	GitHub    string    `json:"github,omitempty"`
	Location  string    `json:"location,omitempty"`
	Goal      string    `json:"goal,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Priority  Priority  `json:"priority"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Photo     *PhotoRef `json:"photo,omitempty"`

	// FaceIndexed is reserved for a future biometric index; nothing sets it today.
	FaceIndexed bool `json:"face_indexed,omitempty"`
}

// ContactFields is the caller-supplied field set for a new contact.
// Name is the only required field.
type ContactFields struct {
	Name     string   `json:"name"`
	Position string   `json:"position,omitempty"`
	Company  string   `json:"company,omitempty"`
	Email    string   `json:"email,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Telegram string   `json:"telegram,omitempty"`
	LinkedIn string   `json:"linkedin,omitempty"`
	GitHub   string   `json:"github,omitempty"`
	Location string   `json:"location,omitempty"`
	Goal     string   `json:"goal,omitempty"`
	Notes    string   `json:"notes,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Priority string   `json:"priority,omitempty"`
	Source   string   `json:"source,omitempty"`
}

// Validate checks required fields.
func (f *ContactFields) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return &Error{Kind: ErrValidation, Message: "contact name is required"}
	}
	return nil
}

// NormalizedTags returns the tag set trimmed, lowercased, de-duplicated and sorted.
func (f *ContactFields) NormalizedTags() []string {
	seen := make(map[string]struct{}, len(f.Tags))
	out := make([]string, 0, len(f.Tags))
	for _, t := range f.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// BuilderApplication is a structured intake form. At most one exists per
// owner; the orchestrator enforces this before insert.
type BuilderApplication struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Telegram   string    `json:"telegram,omitempty"`
	Project    string    `json:"project,omitempty"`
	Role       string    `json:"role,omitempty"`
	Experience string    `json:"experience,omitempty"`
	Motivation string    `json:"motivation,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// BuilderFields is the caller-supplied field set for a builder application.
type BuilderFields struct {
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Telegram   string `json:"telegram,omitempty"`
	Project    string `json:"project,omitempty"`
	Role       string `json:"role,omitempty"`
	Experience string `json:"experience,omitempty"`
	Motivation string `json:"motivation,omitempty"`
}

// Validate checks required fields.
func (f *BuilderFields) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return &Error{Kind: ErrValidation, Message: "applicant name is required"}
	}
	return nil
}

// Stats summarizes a single owner's contact book.
type Stats struct {
	Total          int              `json:"total"`
	PerPriority    map[Priority]int `json:"per_priority"`
	WithEmail      int              `json:"with_email"`
	WithLinkedIn   int              `json:"with_linkedin"`
	WithGitHub     int              `json:"with_github"`
	CreatedLast7d  int              `json:"created_last_7d"`
	CreatedLast30d int              `json:"created_last_30d"`
}
