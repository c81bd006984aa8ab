// Package accesskey authorizes requests presented with a signed API access
// key and tracks key revocation.
package accesskey

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/authcore/internal/metrics"
	"go.pilab.hu/authcore/token"
)

const (
	// revocationCheckInterval bounds how stale a cached revocation verdict
	// may be. A key revoked in the store is rejected at most this long
	// after revocation.
	revocationCheckInterval = time.Minute

	// temporaryKeyLifetime is the fixed lifetime of temporary keys. They
	// expire by age alone and never touch the store.
	temporaryKeyLifetime = time.Minute
)

// KeyStore answers whether a non-temporary access key is still issued.
// Deleting the key from the store revokes it.
type KeyStore interface {
	// KeyExists reports whether a key with the given id exists.
	KeyExists(ctx context.Context, id string) (bool, error)
}

// keyState is the cached revocation state of a single key. Both fields are
// updated without a lock: revoked only ever transitions false to true, and
// for nextCheck concurrent verifiers racing to reschedule write values
// within the same interval, so last-write-wins is fine.
type keyState struct {
	revoked   atomic.Bool
	nextCheck atomic.Int64 // unix millis of the next store lookup
}

// Checker validates decoded access keys against the store, caching
// revocation state per key id.
type Checker struct {
	store  KeyStore
	states *ttlcache.Cache[string, *keyState]
	now    func() time.Time
}

// NewChecker creates a Checker backed by the given store. Cached state
// expires after an idle period several times the check interval; an entry
// evicted and recreated merely triggers one extra store lookup.
func NewChecker(store KeyStore) *Checker {
	states := ttlcache.New(
		ttlcache.WithTTL[string, *keyState](30*time.Minute),
		ttlcache.WithDisableTouchOnHit[string, *keyState](),
	)
	go states.Start()
	return &Checker{
		store:  store,
		states: states,
		now:    time.Now,
	}
}

// IsAllowed reports whether the key authorizes a request with the given
// method and path. Temporary keys are valid by age alone; durable keys are
// checked against the store at most once per check interval, and a key seen
// revoked once stays revoked for the life of the cache entry. Store errors
// reject the request.
func (c *Checker) IsAllowed(ctx context.Context, key *token.APIAccessKey, method, path string) (bool, error) {
	if key.Temporary {
		if key.IssuedAt.Add(temporaryKeyLifetime).Before(c.now()) {
			metrics.RevocationRejectsTotal.Inc()
			log.Ctx(ctx).Debug().Str("key_id", key.ID).Msg("temporary access key expired")
			return false, nil
		}
		return key.MethodAllowed(method) && key.PathAllowed(path), nil
	}

	item, _ := c.states.GetOrSet(key.ID, &keyState{},
		ttlcache.WithTTL[string, *keyState](ttlcache.NoTTL))
	state := item.Value()

	if state.revoked.Load() {
		metrics.RevocationRejectsTotal.Inc()
		return false, nil
	}

	now := c.now()
	if now.UnixMilli() >= state.nextCheck.Load() {
		exists, err := c.store.KeyExists(ctx, key.ID)
		if err != nil {
			return false, fmt.Errorf("check access key %s: %w", key.ID, err)
		}
		if !exists {
			state.revoked.Store(true)
			metrics.RevocationRejectsTotal.Inc()
			log.Ctx(ctx).Info().Str("key_id", key.ID).Str("user_id", key.UserID).Msg("access key revoked")
			return false, nil
		}
		state.nextCheck.Store(now.Add(revocationCheckInterval).UnixMilli())
	}

	return key.MethodAllowed(method) && key.PathAllowed(path), nil
}

// Stop stops the cache eviction loop.
func (c *Checker) Stop() {
	c.states.Stop()
}
