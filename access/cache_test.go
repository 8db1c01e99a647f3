// access/cache_test.go
package access

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/api/db"
	apierrors "github.com/taskhive/api/errors"
	"github.com/taskhive/api/model"
)

// fakeMembershipReader serves canned memberships and counts datastore reads so
// tests can prove when the cache absorbed a lookup.
type fakeMembershipReader struct {
	mu          sync.Mutex
	memberships map[string]*model.Membership
	errs        map[string]error
	reads       int
}

func newFakeMembershipReader() *fakeMembershipReader {
	return &fakeMembershipReader{
		memberships: make(map[string]*model.Membership),
		errs:        make(map[string]error),
	}
}

func (f *fakeMembershipReader) key(resourceType model.ResourceType, resourceID string) string {
	return fmt.Sprintf("%s/%s", resourceType, resourceID)
}

func (f *fakeMembershipReader) set(resourceType model.ResourceType, resourceID string, m *model.Membership) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberships[f.key(resourceType, resourceID)] = m
}

func (f *fakeMembershipReader) fail(resourceType model.ResourceType, resourceID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[f.key(resourceType, resourceID)] = err
}

func (f *fakeMembershipReader) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *fakeMembershipReader) GetMembership(ctx context.Context, resourceType model.ResourceType, resourceID string) (*model.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err, ok := f.errs[f.key(resourceType, resourceID)]; ok {
		return nil, err
	}
	m, ok := f.memberships[f.key(resourceType, resourceID)]
	if !ok {
		if resourceType == model.ResourceTask {
			return nil, apierrors.ErrTaskNotFound
		}
		return nil, apierrors.ErrProjectNotFound
	}
	return m, nil
}

func newTestCache(t *testing.T) (*Cache, *fakeMembershipReader, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := db.NewCacheStoreWithOptions(&redis.Options{Addr: mr.Addr(), DialTimeout: time.Second}, 2*time.Second, 0)
	t.Cleanup(store.Close)

	reader := newFakeMembershipReader()
	cache := NewCache(store, reader, time.Hour, 30*time.Minute)
	return cache, reader, mr
}

func TestCheck_MissResolvesAndCaches(t *testing.T) {
	cache, reader, mr := newTestCache(t)
	ctx := context.Background()
	reader.set(model.ResourceProject, "p1", &model.Membership{OwnerID: "u1", MemberIDs: []string{"u2"}})

	decision, err := cache.Check(ctx, "u2", model.ResourceProject, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionAllow, decision)
	assert.Equal(t, 1, reader.readCount())

	// Second check for the same pair is served from the cache.
	decision, err = cache.Check(ctx, "u2", model.ResourceProject, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionAllow, decision)
	assert.Equal(t, 1, reader.readCount())

	// The entry carries the project TTL.
	ttl := mr.TTL("access:project:p1:u2")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestCheck_DenyIsCachedToo(t *testing.T) {
	cache, reader, _ := newTestCache(t)
	ctx := context.Background()
	reader.set(model.ResourceProject, "p1", &model.Membership{OwnerID: "u1"})

	decision, err := cache.Check(ctx, "outsider", model.ResourceProject, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionDeny, decision)

	decision, err = cache.Check(ctx, "outsider", model.ResourceProject, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionDeny, decision)
	assert.Equal(t, 1, reader.readCount())
}

func TestCheck_OwnerAndAssigneeAllowed(t *testing.T) {
	cache, reader, _ := newTestCache(t)
	ctx := context.Background()
	reader.set(model.ResourceTask, "t1", &model.Membership{OwnerID: "u1", MemberIDs: []string{"u3"}})

	decision, err := cache.Check(ctx, "u1", model.ResourceTask, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionAllow, decision)

	decision, err = cache.Check(ctx, "u3", model.ResourceTask, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionAllow, decision)
}

func TestCheck_MissingResourceDenies(t *testing.T) {
	cache, _, _ := newTestCache(t)
	ctx := context.Background()

	decision, err := cache.Check(ctx, "u1", model.ResourceProject, "ghost")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionDeny, decision)

	decision, err = cache.Check(ctx, "u1", model.ResourceTask, "ghost")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionDeny, decision)
}

func TestCheck_TaskTTLShorterThanProject(t *testing.T) {
	cache, reader, mr := newTestCache(t)
	ctx := context.Background()
	reader.set(model.ResourceTask, "t1", &model.Membership{OwnerID: "u1"})

	_, err := cache.Check(ctx, "u1", model.ResourceTask, "t1")
	require.NoError(t, err)

	ttl := mr.TTL("access:task:t1:u1")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 30*time.Minute)
}

func TestInvalidate_FlipsDenyToAllow(t *testing.T) {
	cache, reader, _ := newTestCache(t)
	ctx := context.Background()
	reader.set(model.ResourceProject, "p1", &model.Membership{OwnerID: "u1"})

	decision, err := cache.Check(ctx, "u2", model.ResourceProject, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionDeny, decision)

	// u2 joins the project; without invalidation the stale deny would stand.
	reader.set(model.ResourceProject, "p1", &model.Membership{OwnerID: "u1", MemberIDs: []string{"u2"}})
	require.NoError(t, cache.Invalidate(ctx, model.ResourceProject, "p1"))

	decision, err = cache.Check(ctx, "u2", model.ResourceProject, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionAllow, decision)
}

func TestInvalidate_FlipsAllowToDeny(t *testing.T) {
	cache, reader, _ := newTestCache(t)
	ctx := context.Background()
	reader.set(model.ResourceProject, "p1", &model.Membership{OwnerID: "u1", MemberIDs: []string{"u2"}})

	decision, err := cache.Check(ctx, "u2", model.ResourceProject, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionAllow, decision)

	reader.set(model.ResourceProject, "p1", &model.Membership{OwnerID: "u1"})
	require.NoError(t, cache.Invalidate(ctx, model.ResourceProject, "p1"))

	decision, err = cache.Check(ctx, "u2", model.ResourceProject, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionDeny, decision)
}

func TestInvalidate_ScopedToOneResource(t *testing.T) {
	cache, reader, _ := newTestCache(t)
	ctx := context.Background()
	reader.set(model.ResourceProject, "p1", &model.Membership{OwnerID: "u1"})
	reader.set(model.ResourceProject, "p2", &model.Membership{OwnerID: "u1"})

	_, err := cache.Check(ctx, "u1", model.ResourceProject, "p1")
	require.NoError(t, err)
	_, err = cache.Check(ctx, "u1", model.ResourceProject, "p2")
	require.NoError(t, err)
	require.Equal(t, 2, reader.readCount())

	require.NoError(t, cache.Invalidate(ctx, model.ResourceProject, "p1"))

	// p2's decision is still cached, p1's is not.
	_, err = cache.Check(ctx, "u1", model.ResourceProject, "p2")
	require.NoError(t, err)
	assert.Equal(t, 2, reader.readCount())

	_, err = cache.Check(ctx, "u1", model.ResourceProject, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, reader.readCount())
}

func TestCheck_CacheDownResolvesDirectly(t *testing.T) {
	cache, reader, mr := newTestCache(t)
	ctx := context.Background()
	reader.set(model.ResourceProject, "p1", &model.Membership{OwnerID: "u1"})

	mr.SetError("connection refused")

	// Permission checks keep working against the datastore, uncached.
	decision, err := cache.Check(ctx, "u1", model.ResourceProject, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionAllow, decision)
	assert.Equal(t, 1, reader.readCount())

	decision, err = cache.Check(ctx, "u1", model.ResourceProject, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionAllow, decision)
	assert.Equal(t, 2, reader.readCount())
}

func TestCheck_DatastoreErrorPropagates(t *testing.T) {
	cache, reader, _ := newTestCache(t)
	ctx := context.Background()
	reader.fail(model.ResourceProject, "p1", apierrors.ErrDatabaseOperation)

	_, err := cache.Check(ctx, "u1", model.ResourceProject, "p1")
	assert.ErrorIs(t, err, apierrors.ErrDatabaseOperation)
}

func TestCheck_ExpiredEntryRecomputes(t *testing.T) {
	cache, reader, mr := newTestCache(t)
	ctx := context.Background()
	reader.set(model.ResourceTask, "t1", &model.Membership{OwnerID: "u1"})

	_, err := cache.Check(ctx, "u1", model.ResourceTask, "t1")
	require.NoError(t, err)
	require.Equal(t, 1, reader.readCount())

	mr.FastForward(31 * time.Minute)

	_, err = cache.Check(ctx, "u1", model.ResourceTask, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, reader.readCount())
}
