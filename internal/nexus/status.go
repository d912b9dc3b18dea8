package nexus

import (
	"bytes"
	"context"
	"time"
)

// SystemStatus is an operational health summary: one boolean per backend
// plus an overall tri-state. It informs dashboards, never correctness.
type SystemStatus struct {
	Database    bool      `json:"database"`
	ObjectStore bool      `json:"object_store"`
	Ledger      bool      `json:"ledger"`
	Overall     string    `json:"overall"` // "ok", "degraded" or "down"
	CheckedAt   time.Time `json:"checked_at"`
}

// GetSystemStatus probes each backend's reachability.
func (s *Service) GetSystemStatus(ctx context.Context) *SystemStatus {
	st := &SystemStatus{CheckedAt: s.clock.Now().UTC()}

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("database unreachable", "error", err)
	} else {
		st.Database = true
	}
	if err := s.objects.Ping(ctx); err != nil {
		s.logger.Warn("object store unreachable", "error", err)
	} else {
		st.ObjectStore = true
	}
	if err := s.ledger.Ping(ctx); err != nil {
		s.logger.Warn("ledger unreachable", "error", err)
	} else {
		st.Ledger = true
	}

	healthy := 0
	for _, up := range []bool{st.Database, st.ObjectStore, st.Ledger} {
		if up {
			healthy++
		}
	}
	switch healthy {
	case 3:
		st.Overall = "ok"
	case 0:
		st.Overall = "down"
	default:
		st.Overall = "degraded"
	}
	return st
}

// RetrievePhoto fetches a contact's photo bytes from the object store,
// decrypting when a DecryptionContext is supplied (photos uploaded with an
// encryptor configured are stored as ciphertext).
func (s *Service) RetrievePhoto(ctx context.Context, owner, id string, dec DecryptionContext) ([]byte, error) {
	c, err := s.store.GetContact(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if c == nil || c.Photo == nil {
		return nil, wrapErr(ErrNotFound, "contact has no photo", nil)
	}

	data, err := s.objects.Retrieve(ctx, c.Photo.Locator)
	if err != nil {
		return nil, err
	}

	if dec != nil {
		var buf bytes.Buffer
		if err := dec.Decrypt(bytes.NewReader(data), &buf); err != nil {
			return nil, wrapErr(ErrValidation, "decrypting photo", err)
		}
		return buf.Bytes(), nil
	}
	return data, nil
}
