package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"nexus-go/internal/nexus"
)

// IPFSStore talks to an IPFS node over its HTTP API. The locator is the CID
// returned by the add call, so content addressing is native here; we still
// record our own sha256 so the rest of the system hashes uniformly.
type IPFSStore struct {
	client  *resty.Client
	minSize int64
}

var _ nexus.ObjectStore = (*IPFSStore)(nil)

// NewIPFSStore points at an IPFS API endpoint, e.g. http://127.0.0.1:5001.
func NewIPFSStore(apiURL string, minSize int64) *IPFSStore {
	client := resty.New().SetBaseURL(apiURL)
	return &IPFSStore{client: client, minSize: minSize}
}

type ipfsAddResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

func (s *IPFSStore) Upload(ctx context.Context, data []byte, name string) (*nexus.UploadResult, error) {
	if err := CheckPayload(data, s.minSize); err != nil {
		return nil, err
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetFileReader("file", name, bytes.NewReader(data)).
		Post("/api/v0/add")
	if err != nil {
		return nil, nexus.E(nexus.ErrUploadFailed, "adding object to ipfs", err)
	}
	if resp.IsError() {
		return nil, nexus.E(nexus.ErrUploadFailed,
			fmt.Sprintf("ipfs add returned status %d", resp.StatusCode()), nil)
	}

	var added ipfsAddResponse
	if err := json.Unmarshal(resp.Body(), &added); err != nil {
		return nil, nexus.E(nexus.ErrUploadFailed, "decoding ipfs add response", err)
	}
	if added.Hash == "" {
		return nil, nexus.E(nexus.ErrUploadFailed, "ipfs add returned no CID", nil)
	}

	return &nexus.UploadResult{
		Locator:     added.Hash,
		ContentHash: sha256Hex(data),
		Size:        int64(len(data)),
	}, nil
}

func (s *IPFSStore) Retrieve(ctx context.Context, locator string) ([]byte, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("arg", locator).
		Post("/api/v0/cat")
	if err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "fetching object from ipfs", err)
	}
	if resp.StatusCode() == 500 || resp.StatusCode() == 404 {
		return nil, nexus.E(nexus.ErrNotFound, "object not found in ipfs", nil)
	}
	if resp.IsError() {
		return nil, nexus.E(nexus.ErrStorageUnavailable,
			fmt.Sprintf("ipfs cat returned status %d", resp.StatusCode()), nil)
	}
	return resp.Body(), nil
}

func (s *IPFSStore) Ping(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Post("/api/v0/version")
	if err != nil {
		return nexus.E(nexus.ErrStorageUnavailable, "ipfs node unreachable", err)
	}
	if resp.IsError() {
		return nexus.E(nexus.ErrStorageUnavailable,
			fmt.Sprintf("ipfs version returned status %d", resp.StatusCode()), nil)
	}
	return nil
}
