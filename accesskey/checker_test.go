package accesskey

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/authcore/token"
)

type fakeStore struct {
	mu     sync.Mutex
	exists map[string]bool
	err    error
	calls  int
}

func (s *fakeStore) KeyExists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.exists[id], nil
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestChecker(store KeyStore) (*Checker, *time.Time) {
	now := time.Now()
	c := NewChecker(store)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestAllowedKeyConsultsStoreOncePerInterval(t *testing.T) {
	key := token.NewAPIAccessKey("alice", []string{"GET"}, nil, false)
	store := &fakeStore{exists: map[string]bool{key.ID: true}}
	c, now := newTestChecker(store)
	defer c.Stop()

	for i := 0; i < 5; i++ {
		ok, err := c.IsAllowed(context.Background(), key, "GET", "/api/v1/elements")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, store.callCount())

	// Past the check interval the store is consulted again.
	*now = now.Add(61 * time.Second)
	ok, err := c.IsAllowed(context.Background(), key, "GET", "/api/v1/elements")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, store.callCount())
}

func TestRevocationIsMonotonic(t *testing.T) {
	key := token.NewAPIAccessKey("alice", nil, nil, false)
	store := &fakeStore{exists: map[string]bool{}}
	c, now := newTestChecker(store)
	defer c.Stop()

	ok, err := c.IsAllowed(context.Background(), key, "GET", "/")
	require.NoError(t, err)
	assert.False(t, ok)

	// Re-adding the key to the store does not resurrect it: the cached
	// verdict is checked before any store lookup.
	store.mu.Lock()
	store.exists[key.ID] = true
	store.mu.Unlock()
	*now = now.Add(10 * time.Minute)

	ok, err = c.IsAllowed(context.Background(), key, "GET", "/")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.callCount())
}

func TestStoreErrorRejects(t *testing.T) {
	key := token.NewAPIAccessKey("alice", nil, nil, false)
	store := &fakeStore{err: errors.New("connection refused")}
	c, _ := newTestChecker(store)
	defer c.Stop()

	ok, err := c.IsAllowed(context.Background(), key, "GET", "/")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestTemporaryKeyExpiresByAge(t *testing.T) {
	key := token.NewAPIAccessKey("alice", nil, nil, true)
	store := &fakeStore{}
	c, now := newTestChecker(store)
	defer c.Stop()

	ok, err := c.IsAllowed(context.Background(), key, "GET", "/")
	require.NoError(t, err)
	assert.True(t, ok)

	*now = now.Add(2 * time.Minute)
	ok, err = c.IsAllowed(context.Background(), key, "GET", "/")
	require.NoError(t, err)
	assert.False(t, ok)

	// Temporary keys never touch the store.
	assert.Equal(t, 0, store.callCount())
}

func TestMethodAndPathRestrictions(t *testing.T) {
	key := token.NewAPIAccessKey("alice",
		[]string{"GET"},
		[]string{`/api/v1/elements(/.*)?`},
		false)
	store := &fakeStore{exists: map[string]bool{key.ID: true}}
	c, _ := newTestChecker(store)
	defer c.Stop()

	ok, err := c.IsAllowed(context.Background(), key, "get", "/api/v1/elements")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsAllowed(context.Background(), key, "DELETE", "/api/v1/elements")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.IsAllowed(context.Background(), key, "GET", "/api/v1/other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentVerifiersShareState(t *testing.T) {
	key := token.NewAPIAccessKey("alice", nil, nil, false)
	store := &fakeStore{exists: map[string]bool{key.ID: true}}
	c, _ := newTestChecker(store)
	defer c.Stop()

	var denied atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := c.IsAllowed(context.Background(), key, "GET", "/")
			if err == nil && !ok {
				denied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, denied.Load())
	// All goroutines resolved to the same cached entry.
	assert.Equal(t, 1, c.states.Len())
}
