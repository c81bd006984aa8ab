package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/authcore/token"
)

const testNode = "node1"

func newTestService(store Store) *Service {
	return NewService(store, token.NewSigner([]byte("unit-test-audit-secret")), testNode)
}

func appendN(t *testing.T, svc *Service, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		outcome := OutcomePassed
		if i%2 == 1 {
			outcome = OutcomeFailed
		}
		require.NoError(t, svc.Append(context.Background(), "10.0.0.7", "curl/8.5", "alice", outcome))
	}
}

func TestAppendChainsRecords(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store)
	appendN(t, svc, 3)

	for id := int64(1); id <= 3; id++ {
		data, err := svc.Record(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, data.Valid, "record %d", id)
		assert.Equal(t, id, data.ID)
		assert.Equal(t, id-1, data.PreviousID)
		assert.Equal(t, testNode, data.LocalNode)
	}

	_, err := svc.Record(context.Background(), 99)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestFindVerifiesChain(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store)
	appendN(t, svc, 3)

	records, err := svc.Find(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, record := range records {
		assert.True(t, record.Valid, "record %d", record.ID)
	}
	// Newest first.
	assert.Equal(t, int64(3), records[0].ID)
}

func TestCorruptedSignatureFlagsOnlyThatRecord(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store)
	appendN(t, svc, 3)
	store.corrupt(testNode, 2)

	records, err := svc.Find(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	byID := make(map[int64]RecordData, 3)
	for _, record := range records {
		byID[record.ID] = record
	}
	assert.True(t, byID[1].Valid)
	assert.False(t, byID[2].Valid)
	// Record 3's predecessor is present, so record 3 stays valid even
	// though that predecessor's own signature is broken.
	assert.True(t, byID[3].Valid)
}

func TestRemovedRecordInvalidatesSuccessor(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store)
	appendN(t, svc, 3)
	store.remove(testNode, 2)

	records, err := svc.Find(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	byID := make(map[int64]RecordData, 2)
	for _, record := range records {
		byID[record.ID] = record
	}
	// The chain head never names a predecessor.
	assert.True(t, byID[1].Valid)
	// Record 3 names the removed record 2 as predecessor.
	assert.False(t, byID[3].Valid)
}

func TestFindFilters(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store)
	require.NoError(t, svc.Append(context.Background(), "10.0.0.7", "curl/8.5", "alice", OutcomePassed))
	require.NoError(t, svc.Append(context.Background(), "10.0.0.8", "curl/8.5", "bob", OutcomeFailed))
	require.NoError(t, svc.Append(context.Background(), "10.0.0.7", "curl/8.5", "alice", OutcomeFailed))

	records, err := svc.Find(context.Background(), Query{RemoteIP: "10.0.0.8"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "bob", records[0].UserID)

	records, err = svc.Find(context.Background(), Query{UserPattern: "^ali"})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = svc.Find(context.Background(), Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(3), records[0].ID)

	records, err = svc.Find(context.Background(), Query{To: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTamperedFieldBreaksSignature(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store)
	appendN(t, svc, 1)

	store.mu.Lock()
	store.nodes[testNode][0].UserID = "mallory"
	store.mu.Unlock()

	data, err := svc.Record(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, data.Valid)
}
