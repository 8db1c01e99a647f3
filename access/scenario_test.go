// access/scenario_test.go
package access

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/api/db"
	"github.com/taskhive/api/model"
	"github.com/taskhive/api/token"
)

// TestMemberJoinScenario walks the full path a new project member takes:
// log in, get denied on a project, join it, get allowed after invalidation.
func TestMemberJoinScenario(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := db.NewCacheStoreWithOptions(&redis.Options{Addr: mr.Addr(), DialTimeout: time.Second}, 2*time.Second, 0)
	t.Cleanup(store.Close)

	tokens, err := token.NewService("0123456789abcdef0123456789abcdef", 15*time.Minute, 168*time.Hour, store)
	require.NoError(t, err)

	reader := newFakeMembershipReader()
	reader.set(model.ResourceProject, "p1", &model.Membership{OwnerID: "owner"})
	cache := NewCache(store, reader, time.Hour, 30*time.Minute)

	// u1 logs in.
	pair, err := tokens.Issue(ctx, model.Identity{ID: "u1", Role: model.RoleMember})
	require.NoError(t, err)
	identity, err := tokens.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "u1", identity.ID)

	// u1 is not a member of p1: denied, and the deny is cached.
	decision, err := cache.Check(ctx, identity.ID, model.ResourceProject, "p1")
	require.NoError(t, err)
	require.Equal(t, model.DecisionDeny, decision)
	require.Equal(t, 1, reader.readCount())

	// u1 is added to p1; the write commits, then invalidation runs.
	reader.set(model.ResourceProject, "p1", &model.Membership{OwnerID: "owner", MemberIDs: []string{"u1"}})
	require.NoError(t, cache.Invalidate(ctx, model.ResourceProject, "p1"))

	// The next check resolves fresh and allows.
	decision, err = cache.Check(ctx, identity.ID, model.ResourceProject, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionAllow, decision)
	assert.Equal(t, 2, reader.readCount())
}
