package session

import (
	"context"
	"sync"
	"time"

	"nexus-go/internal/nexus"
)

// MemoryStore keeps pending actions in a map. Expiry is enforced on read:
// Get drops and hides entries past their deadline.
type MemoryStore struct {
	mu      sync.Mutex
	actions map[string]nexus.PendingAction
	now     func() time.Time
}

var _ nexus.SessionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		actions: make(map[string]nexus.PendingAction),
		now:     time.Now,
	}
}

// SetNowFunc replaces the time source, for expiry tests.
func (s *MemoryStore) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Put(ctx context.Context, owner string, action nexus.PendingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[owner] = action
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, owner string) (*nexus.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.actions[owner]
	if !ok {
		return nil, nil
	}
	if action.Expired(s.now()) {
		delete(s.actions, owner)
		return nil, nil
	}
	clone := action
	return &clone, nil
}

func (s *MemoryStore) Delete(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.actions, owner)
	return nil
}
