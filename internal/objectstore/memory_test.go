package objectstore_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"nexus-go/internal/nexus"
	"nexus-go/internal/objectstore"
	"nexus-go/internal/testutil"
)

func TestMemoryStore_UploadRetrieveRoundTrip(t *testing.T) {
	store := objectstore.NewMemoryStore(0)
	ctx := context.Background()
	data := []byte("photo bytes")

	res, err := store.Upload(ctx, data, "photo.jpg")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.ContentHash != testutil.SHA256Hex(data) {
		t.Errorf("ContentHash = %q, want %q", res.ContentHash, testutil.SHA256Hex(data))
	}
	if res.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", res.Size, len(data))
	}

	got, err := store.Retrieve(ctx, res.Locator)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Retrieve() = %q, want %q", got, data)
	}
}

func TestMemoryStore_UploadIsIdempotent(t *testing.T) {
	store := objectstore.NewMemoryStore(0)
	ctx := context.Background()
	data := []byte("same bytes")

	first, err := store.Upload(ctx, data, "a.jpg")
	if err != nil {
		t.Fatalf("first Upload() error = %v", err)
	}
	second, err := store.Upload(ctx, data, "b.jpg")
	if err != nil {
		t.Fatalf("second Upload() error = %v", err)
	}
	if first.Locator != second.Locator || first.ContentHash != second.ContentHash {
		t.Errorf("uploads of identical bytes differ: %+v vs %+v", first, second)
	}
}

func TestMemoryStore_RejectsSmallPayloads(t *testing.T) {
	store := objectstore.NewMemoryStore(1024)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "below minimum", data: make([]byte, 37)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Upload(context.Background(), tt.data, "small.jpg")
			if !errors.Is(err, nexus.ErrUploadFailed) {
				t.Errorf("Upload() error = %v, want ErrUploadFailed", err)
			}
		})
	}

	t.Run("at minimum passes", func(t *testing.T) {
		_, err := store.Upload(context.Background(), make([]byte, 1024), "big.jpg")
		if err != nil {
			t.Errorf("Upload() error = %v", err)
		}
	})
}

func TestMemoryStore_RetrieveAbsent(t *testing.T) {
	store := objectstore.NewMemoryStore(0)

	_, err := store.Retrieve(context.Background(), "mem://deadbeef")
	if !errors.Is(err, nexus.ErrNotFound) {
		t.Errorf("Retrieve() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_FailNextUpload(t *testing.T) {
	store := objectstore.NewMemoryStore(0)
	ctx := context.Background()
	store.FailNextUpload()

	if _, err := store.Upload(ctx, []byte("data"), "x.jpg"); err == nil {
		t.Fatal("Upload() error = nil, want injected failure")
	}
	if _, err := store.Upload(ctx, []byte("data"), "x.jpg"); err != nil {
		t.Errorf("Upload() after injected failure error = %v, want nil", err)
	}
}
