package nexus

import "context"

// UploadResult describes stored bytes: the backend's opaque locator, the
// sha256 hex of the stored bytes, and their size.
type UploadResult struct {
	Locator     string `json:"locator"`
	ContentHash string `json:"content_hash"`
	Size        int64  `json:"size"`
}

// ObjectStore is the canonical home for binary payloads. Stored bytes are
// never mutated in place; re-uploading identical bytes is safe and yields
// the same content hash.
//
// A rejected payload (empty, undersized, or a backend refusal) wraps
// ErrUploadFailed. There is no silent fallback: an upload either produces a
// real locator or fails.
type ObjectStore interface {
	Upload(ctx context.Context, data []byte, name string) (*UploadResult, error)
	Retrieve(ctx context.Context, locator string) ([]byte, error)

	// Ping verifies the store is reachable and configured.
	Ping(ctx context.Context) error
}
