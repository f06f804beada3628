package drafts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheFetchJSONVersioning(t *testing.T) {
	cache := NewCache(newRedis(t), time.Minute)
	ctx := context.Background()

	loads := 0
	loader := func(context.Context) (any, error) {
		loads++
		return map[string]int{"n": loads}, nil
	}

	var got map[string]int
	require.NoError(t, cache.FetchJSON(ctx, kindDraft, "d-1", &got, loader))
	require.NoError(t, cache.FetchJSON(ctx, kindDraft, "d-1", &got, loader))
	assert.Equal(t, 1, got["n"])

	require.NoError(t, cache.Bump(ctx, kindDraft, "d-1"))
	ver, err := cache.Version(ctx, kindDraft, "d-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), ver)

	require.NoError(t, cache.FetchJSON(ctx, kindDraft, "d-1", &got, loader))
	assert.Equal(t, 2, got["n"])

	require.NoError(t, cache.FetchJSON(ctx, kindDraft, "d-2", &got, loader))
	assert.Equal(t, 3, got["n"], "versions are per entity")
}

func TestCacheEntriesExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	loads := 0
	loader := func(context.Context) (any, error) {
		loads++
		return loads, nil
	}
	var got int
	require.NoError(t, cache.FetchJSON(ctx, kindRequest, "r-1", &got, loader))
	mr.FastForward(2 * time.Minute)
	require.NoError(t, cache.FetchJSON(ctx, kindRequest, "r-1", &got, loader))
	assert.Equal(t, 2, got)
}

func TestNilCacheAlwaysLoads(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	var got string
	require.NoError(t, cache.FetchJSON(ctx, kindDraft, "d-1", &got, func(context.Context) (any, error) {
		return "fresh", nil
	}))
	assert.Equal(t, "fresh", got)
	assert.NoError(t, cache.Bump(ctx, kindDraft, "d-1"))

	loadErr := errors.New("boom")
	err := cache.FetchJSON(ctx, kindDraft, "d-1", &got, func(context.Context) (any, error) { return nil, loadErr })
	assert.ErrorIs(t, err, loadErr)
	assert.Error(t, cache.FetchJSON(ctx, kindDraft, "d-1", &got, nil))
}

func TestListenForInvalidation(t *testing.T) {
	cache := NewCache(newRedis(t), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan [2]string, 1)
	require.NoError(t, cache.ListenForInvalidation(ctx, func(kind, id string) {
		seen <- [2]string{kind, id}
	}))
	require.NoError(t, cache.Bump(ctx, kindDraft, "d:7"))

	select {
	case got := <-seen:
		assert.Equal(t, [2]string{kindDraft, "d:7"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no invalidation received")
	}
}

func TestParseInvalidation(t *testing.T) {
	kind, id, ok := parseInvalidation("draft:abc:3")
	assert.True(t, ok)
	assert.Equal(t, "draft", kind)
	assert.Equal(t, "abc", id)

	for _, bad := range []string{"", "draft", "draft:3"} {
		_, _, ok := parseInvalidation(bad)
		assert.False(t, ok, bad)
	}
}

func TestLockerLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewLocker(client, time.Second)
	ctx := context.Background()
	key := SessionLockKey("s-1")
	assert.Equal(t, "drafts:session:s-1:lock", key)

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	_, err = locker.Acquire(ctx, key)
	require.ErrorIs(t, err, ErrLocked)

	mr.FastForward(2 * time.Second)
	second, err := locker.Acquire(ctx, key)
	require.NoError(t, err, "an expired lease can be taken")

	release()
	assert.True(t, mr.Exists(key), "a stale release does not drop the new holder's lease")
	second()
	assert.False(t, mr.Exists(key))

	var nilLocker *Locker
	free, err := nilLocker.Acquire(ctx, key)
	require.NoError(t, err)
	free()
}
