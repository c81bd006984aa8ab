// Package redisstore implements the API access key store on Redis, for
// deployments where key revocation must propagate quickly across many
// verifier instances without load on the primary database.
package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// KeyStore implements accesskey.KeyStore on Redis. A key exists while its
// Redis entry exists; revocation is deletion.
type KeyStore struct {
	client *redis.Client
	prefix string
}

// NewKeyStore creates a KeyStore. The prefix namespaces the entries, e.g.
// "authcore".
func NewKeyStore(client *redis.Client, prefix string) *KeyStore {
	return &KeyStore{client: client, prefix: prefix}
}

func (s *KeyStore) entry(id string) string {
	return fmt.Sprintf("%s:accesskey:%s", s.prefix, id)
}

// KeyExists implements accesskey.KeyStore.
func (s *KeyStore) KeyExists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.entry(id)).Result()
	if err != nil {
		return false, fmt.Errorf("look up access key %s: %w", id, err)
	}
	return n > 0, nil
}

// Add mirrors an issued key into Redis. The stored value is the issuing
// user, useful for operational inspection; only existence matters for
// validation.
func (s *KeyStore) Add(ctx context.Context, id, userID string) error {
	if err := s.client.Set(ctx, s.entry(id), userID, 0).Err(); err != nil {
		return fmt.Errorf("add access key %s: %w", id, err)
	}
	return nil
}

// Remove revokes a key.
func (s *KeyStore) Remove(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.entry(id)).Err(); err != nil {
		return fmt.Errorf("remove access key %s: %w", id, err)
	}
	return nil
}
