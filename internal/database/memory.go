package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"nexus-go/internal/nexus"
)

// MemoryStore is an in-memory implementation of nexus.ContactStore.
// It backs tests and the demo deployment mode. Safe for concurrent use.
type MemoryStore struct {
	mu           sync.RWMutex
	contacts     map[string]*nexus.Contact            // id -> contact
	applications map[string]*nexus.BuilderApplication // id -> application
	closed       bool
}

var _ nexus.ContactStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contacts:     make(map[string]*nexus.Contact),
		applications: make(map[string]*nexus.BuilderApplication),
	}
}

func (m *MemoryStore) InsertContact(_ context.Context, c *nexus.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.contacts[contactKey(c.Owner, c.ID)] = &clone
	return nil
}

// contactKey scopes the map by owner so identical ids under different owners
// never collide.
func contactKey(owner, id string) string {
	return owner + "\x00" + id
}

func (m *MemoryStore) ListContacts(_ context.Context, owner string) ([]*nexus.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*nexus.Contact
	for _, c := range m.contacts {
		if c.Owner == owner {
			clone := *c
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) GetContact(_ context.Context, owner, id string) (*nexus.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contacts[contactKey(owner, id)]
	if !ok {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

func (m *MemoryStore) SearchContacts(ctx context.Context, owner, query string) ([]*nexus.Contact, error) {
	all, err := m.ListContacts(ctx, owner)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	var out []*nexus.Contact
	for _, c := range all {
		if contactMatches(c, q) {
			out = append(out, c)
		}
	}
	return out, nil
}

func contactMatches(c *nexus.Contact, q string) bool {
	for _, field := range []string{
		c.Name, c.Company, c.Position, c.Email, c.Phone, c.Telegram,
		c.LinkedIn, c.GitHub, c.Location, c.Goal, c.Source,
	} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	for _, t := range c.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) DeleteContact(_ context.Context, owner, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := contactKey(owner, id)
	if _, ok := m.contacts[key]; !ok {
		return false, nil
	}
	delete(m.contacts, key)
	return true, nil
}

func (m *MemoryStore) AttachPhoto(_ context.Context, owner, id string, ref nexus.PhotoRef) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contacts[contactKey(owner, id)]
	if !ok {
		return false, nil
	}
	c.Photo = &ref
	return true, nil
}

func (m *MemoryStore) Stats(_ context.Context, owner string, now time.Time) (*nexus.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now = now.UTC()
	st := &nexus.Stats{PerPriority: map[nexus.Priority]int{
		nexus.PriorityLow:    0,
		nexus.PriorityMedium: 0,
		nexus.PriorityHigh:   0,
	}}
	for _, c := range m.contacts {
		if c.Owner != owner {
			continue
		}
		st.Total++
		st.PerPriority[c.Priority]++
		if c.Email != "" {
			st.WithEmail++
		}
		if c.LinkedIn != "" {
			st.WithLinkedIn++
		}
		if c.GitHub != "" {
			st.WithGitHub++
		}
		if c.CreatedAt.After(now.AddDate(0, 0, -7)) {
			st.CreatedLast7d++
		}
		if c.CreatedAt.After(now.AddDate(0, 0, -30)) {
			st.CreatedLast30d++
		}
	}
	return st, nil
}

func (m *MemoryStore) InsertBuilderApplication(_ context.Context, a *nexus.BuilderApplication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *a
	m.applications[contactKey(a.Owner, a.ID)] = &clone
	return nil
}

func (m *MemoryStore) FindBuilderApplicationByOwner(_ context.Context, owner string) (*nexus.BuilderApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *nexus.BuilderApplication
	for _, a := range m.applications {
		if a.Owner != owner {
			continue
		}
		if best == nil || a.CreatedAt.Before(best.CreatedAt) {
			best = a
		}
	}
	if best == nil {
		return nil, nil
	}
	clone := *best
	return &clone, nil
}

func (m *MemoryStore) GetBuilderApplication(_ context.Context, owner, id string) (*nexus.BuilderApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.applications[contactKey(owner, id)]
	if !ok {
		return nil, nil
	}
	clone := *a
	return &clone, nil
}

func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nexus.E(nexus.ErrStorageUnavailable, "store closed", nil)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
