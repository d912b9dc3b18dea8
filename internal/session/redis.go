package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"nexus-go/internal/nexus"
)

// RedisStore keeps pending actions in redis with a TTL matching the
// action's deadline, so keys clean themselves up even if nobody reads them.
type RedisStore struct {
	client *redis.Client
}

var _ nexus.SessionStore = (*RedisStore)(nil)

// RedisOptions configure a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "connecting to redis", err)
	}
	return &RedisStore{client: client}, nil
}

func sessionKey(owner string) string {
	return "nexus:pending:" + owner
}

func (s *RedisStore) Put(ctx context.Context, owner string, action nexus.PendingAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("encoding pending action: %w", err)
	}

	ttl := time.Until(action.ExpiresAt)
	if ttl <= 0 {
		// Already expired; storing it would be indistinguishable from a
		// miss on the next read anyway.
		return nil
	}

	if err := s.client.Set(ctx, sessionKey(owner), data, ttl).Err(); err != nil {
		return nexus.E(nexus.ErrStorageUnavailable, "storing pending action", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, owner string) (*nexus.PendingAction, error) {
	data, err := s.client.Get(ctx, sessionKey(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "fetching pending action", err)
	}

	var action nexus.PendingAction
	if err := json.Unmarshal(data, &action); err != nil {
		return nil, fmt.Errorf("decoding pending action: %w", err)
	}
	if action.Expired(time.Now()) {
		_ = s.client.Del(ctx, sessionKey(owner)).Err()
		return nil, nil
	}
	return &action, nil
}

func (s *RedisStore) Delete(ctx context.Context, owner string) error {
	if err := s.client.Del(ctx, sessionKey(owner)).Err(); err != nil {
		return nexus.E(nexus.ErrStorageUnavailable, "deleting pending action", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
