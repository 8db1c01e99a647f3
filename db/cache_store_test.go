// db/cache_store_test.go
package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/taskhive/api/errors"
)

func newTestStore(t *testing.T) (*CacheStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewCacheStoreWithOptions(&redis.Options{Addr: mr.Addr(), DialTimeout: time.Second}, 2*time.Second, 0)
	t.Cleanup(store.Close)
	return store, mr
}

func TestCacheStore_SetGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", "v1", time.Minute))

	val, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", val)
}

func TestCacheStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheStore_SetAppliesTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "expiring", "v", time.Minute))
	assert.Greater(t, mr.TTL("expiring"), time.Duration(0))

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "expiring")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheStore_SetIfMatch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "reg", "old", time.Minute))

	ok, err := store.SetIfMatch(ctx, "reg", "old", "new", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	val, err := store.Get(ctx, "reg")
	require.NoError(t, err)
	assert.Equal(t, "new", val)

	// A second swap presenting the already-replaced value must lose.
	ok, err = store.SetIfMatch(ctx, "reg", "old", "newer", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	val, err = store.Get(ctx, "reg")
	require.NoError(t, err)
	assert.Equal(t, "new", val)
}

func TestCacheStore_SetIfMatchAbsentKey(t *testing.T) {
	store, _ := newTestStore(t)

	ok, err := store.SetIfMatch(context.Background(), "nothere", "x", "y", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "gone", "v", time.Minute))
	require.NoError(t, store.Delete(ctx, "gone"))

	_, err := store.Get(ctx, "gone")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// Deleting an absent key is not an error.
	assert.NoError(t, store.Delete(ctx, "gone"))
}

func TestCacheStore_DeleteByPrefixScoping(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "access:project:p1:u1", "allow", time.Minute))
	require.NoError(t, store.Set(ctx, "access:project:p1:u2", "deny", time.Minute))
	require.NoError(t, store.Set(ctx, "access:project:p2:u1", "allow", time.Minute))
	require.NoError(t, store.Set(ctx, "access:task:t1:u1", "allow", time.Minute))

	require.NoError(t, store.DeleteByPrefix(ctx, "access:project:p1:"))

	_, err := store.Get(ctx, "access:project:p1:u1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = store.Get(ctx, "access:project:p1:u2")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// Other resources are untouched.
	val, err := store.Get(ctx, "access:project:p2:u1")
	require.NoError(t, err)
	assert.Equal(t, "allow", val)
	val, err = store.Get(ctx, "access:task:t1:u1")
	require.NoError(t, err)
	assert.Equal(t, "allow", val)
}

func TestCacheStore_UnavailableWrapsSentinel(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	mr.SetError("connection refused")

	_, err := store.Get(ctx, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrCacheUnavailable)
	assert.False(t, errors.Is(err, ErrCacheMiss))

	err = store.Set(ctx, "k", "v2", time.Minute)
	assert.ErrorIs(t, err, apierrors.ErrCacheUnavailable)
}

func TestCacheStore_LockResource(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	locked, err := store.LockResource(ctx, "project:p1:transfer", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)

	// A second holder cannot take the same lock.
	locked, err = store.LockResource(ctx, "project:p1:transfer", time.Minute)
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, store.UnlockResource(ctx, "project:p1:transfer"))

	locked, err = store.LockResource(ctx, "project:p1:transfer", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestCacheStore_LockExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	locked, err := store.LockResource(ctx, "stuck", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	// A crashed holder's lock frees itself after the TTL.
	mr.FastForward(2 * time.Minute)

	locked, err = store.LockResource(ctx, "stuck", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestCacheStore_RateLimit(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := store.RateLimit(ctx, "client-1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := store.RateLimit(ctx, "client-1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// A different caller has its own window.
	allowed, err = store.RateLimit(ctx, "client-2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}
