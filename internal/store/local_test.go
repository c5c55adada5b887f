package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/danchettos12/EntrevistIA/internal/kv"
	"github.com/danchettos12/EntrevistIA/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLocalStore(t *testing.T) (*LocalStore, *kv.Store) {
	t.Helper()
	kvs, err := kv.New(testhelpers.SetupTestDB(t))
	require.NoError(t, err)
	return NewLocalStore(kvs, zap.NewNop()), kvs
}

func TestLocalStoreCreateThenListReturnsNewestFirst(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()
	clock := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first, err := s.CreateSession(ctx, sampleRecord("u1"))
	require.NoError(t, err)
	_, err = s.CreateSession(ctx, sampleRecord("u2"))
	require.NoError(t, err)
	second, err := s.CreateSession(ctx, sampleRecord("u1"))
	require.NoError(t, err)

	assert.NotEqual(t, "client-supplied", first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int64(1_700_000_001_000), first.Timestamp)

	list, err := s.ListSessionsForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, *second, list[0])
	assert.Equal(t, *first, list[1])
}

func TestLocalStoreSharesOneKey(t *testing.T) {
	s, kvs := newLocalStore(t)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, sampleRecord("u1"))
	require.NoError(t, err)
	_, err = s.CreateSession(ctx, sampleRecord("u2"))
	require.NoError(t, err)

	raw, err := kvs.Get(ctx, SessionsKey)
	require.NoError(t, err)
	assert.Contains(t, raw, `"userId":"u1"`)
	assert.Contains(t, raw, `"userId":"u2"`)

	empty, err := s.ListSessionsForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestLocalStoreConcurrentWritersKeepEveryRecord(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateSession(ctx, sampleRecord("u1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := s.ListSessionsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 10)
}

func TestLocalStoreCorruptListIsUnavailable(t *testing.T) {
	s, kvs := newLocalStore(t)
	ctx := context.Background()
	require.NoError(t, kvs.Set(ctx, SessionsKey, "not json"))

	_, err := s.ListSessionsForUser(ctx, "u1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = s.CreateSession(ctx, sampleRecord("u1"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
