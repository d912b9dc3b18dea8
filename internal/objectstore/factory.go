package objectstore

import (
	"context"
	"fmt"

	"nexus-go/internal/config"
	"nexus-go/internal/nexus"
)

// NewObjectStoreFromConfig picks the backend named by the config section.
func NewObjectStoreFromConfig(ctx context.Context, cfg *config.ObjectStoreConfig) (nexus.ObjectStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.MinObjectSize), nil
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			MinSize:  cfg.MinObjectSize,
		})
	case "ipfs":
		if cfg.IPFSAPIURL == "" {
			return nil, fmt.Errorf("ipfs object store requires an api url")
		}
		return NewIPFSStore(cfg.IPFSAPIURL, cfg.MinObjectSize), nil
	default:
		return nil, fmt.Errorf("unknown object store type: %s", cfg.Type)
	}
}
