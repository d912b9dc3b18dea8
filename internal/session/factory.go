package session

import (
	"context"
	"fmt"

	"nexus-go/internal/config"
	"nexus-go/internal/nexus"
)

// NewSessionStoreFromConfig picks the backend named by the config section.
// An empty type means sessions are not configured; callers get a nil store.
func NewSessionStoreFromConfig(ctx context.Context, cfg *config.SessionConfig) (nexus.SessionStore, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis session store requires an address")
		}
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown session store type: %s", cfg.Type)
	}
}
