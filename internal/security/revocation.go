package security

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "auth:revoked:"

// RevocationStore tracks revoked refresh-token ids. Entries carry a TTL equal
// to the refresh lifetime so they expire with the tokens they block.
//
// Revoke is an atomic test-and-set: it returns false when the id was already
// revoked. Refresh rotation relies on this to guarantee that two concurrent
// refresh calls presenting the same token cannot both succeed.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string) (bool, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevocationStore implements RevocationStore on a shared Redis instance,
// giving read-your-writes visibility across processes.
type RedisRevocationStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRevocationStore builds a store whose entries live for ttl.
func NewRedisRevocationStore(client *redis.Client, ttl time.Duration) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, ttl: ttl}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string) (bool, error) {
	first, err := s.client.SetNX(ctx, revokedKeyPrefix+tokenID, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("revoke token %s: %w", tokenID, err)
	}
	return first, nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("check token %s: %w", tokenID, err)
	}
	return n > 0, nil
}
