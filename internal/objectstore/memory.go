package objectstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"nexus-go/internal/nexus"
)

// MemoryStore is an in-memory, content-addressed object store. It backs
// tests and the demo deployment mode. Safe for concurrent use.
//
// Locators are "mem://<sha256>", so re-uploading identical bytes yields the
// same locator and hash — the same property the real backends provide.
type MemoryStore struct {
	minSize int64
	mu      sync.RWMutex
	objects map[string][]byte // content hash -> bytes

	// failNext, when set, makes the next Upload fail. Tests use this to
	// exercise the upload-failure paths without a second fake type.
	failNext bool
}

var _ nexus.ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. minSize below zero means no
// minimum; zero-length payloads are always rejected.
func NewMemoryStore(minSize int64) *MemoryStore {
	return &MemoryStore{
		minSize: minSize,
		objects: make(map[string][]byte),
	}
}

// FailNextUpload makes the next Upload return an upload-failed error.
func (m *MemoryStore) FailNextUpload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = true
}

func (m *MemoryStore) Upload(_ context.Context, data []byte, name string) (*nexus.UploadResult, error) {
	if err := CheckPayload(data, m.minSize); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext {
		m.failNext = false
		return nil, nexus.E(nexus.ErrUploadFailed, "injected failure", nil)
	}

	hash := sha256Hex(data)
	m.objects[hash] = append([]byte(nil), data...)

	return &nexus.UploadResult{
		Locator:     "mem://" + hash,
		ContentHash: hash,
		Size:        int64(len(data)),
	}, nil
}

func (m *MemoryStore) Retrieve(_ context.Context, locator string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash := locator
	if len(locator) > 6 && locator[:6] == "mem://" {
		hash = locator[6:]
	}
	data, ok := m.objects[hash]
	if !ok {
		return nil, nexus.E(nexus.ErrNotFound, "object not found", nil)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// CheckPayload applies the payload rules shared by every backend: empty
// payloads are always rejected, and minSize > 0 imposes a lower bound.
func CheckPayload(data []byte, minSize int64) error {
	if len(data) == 0 {
		return nexus.E(nexus.ErrUploadFailed, "empty payload", nil)
	}
	if minSize > 0 && int64(len(data)) < minSize {
		return nexus.E(nexus.ErrUploadFailed, "payload below minimum size", nil)
	}
	return nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
