// token/service_test.go
package token

import (
	"context"
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

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := db.NewCacheStoreWithOptions(&redis.Options{Addr: mr.Addr(), DialTimeout: time.Second}, 2*time.Second, 0)
	t.Cleanup(store.Close)

	svc, err := NewService(testSecret, 15*time.Minute, 168*time.Hour, store)
	require.NoError(t, err)
	return svc, mr
}

func testIdentity() model.Identity {
	return model.Identity{ID: "u1", Role: model.RoleMember, Profession: "engineer"}
}

func TestNewService_RejectsShortSecret(t *testing.T) {
	_, err := NewService("short", time.Minute, time.Hour, nil)
	assert.Error(t, err)
}

func TestIssueAndVerify(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, testIdentity())
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	identity, err := svc.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.ID)
	assert.Equal(t, model.RoleMember, identity.Role)
	assert.Equal(t, "engineer", identity.Profession)
}

func TestVerify_RejectsRefreshTokenAsAccess(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, testIdentity())
	require.NoError(t, err)

	_, err = svc.Verify(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, apierrors.ErrUnauthenticated)
}

func TestVerify_FailuresAreIndistinguishable(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, testIdentity())
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, pair.AccessToken, testIdentity()))

	otherSvc, err := NewService("ffffffffffffffffffffffffffffffff", 15*time.Minute, time.Hour,
		db.NewCacheStoreWithOptions(&redis.Options{Addr: mr.Addr(), DialTimeout: time.Second}, 2*time.Second, 0))
	require.NoError(t, err)
	foreign, err := otherSvc.Issue(ctx, testIdentity())
	require.NoError(t, err)

	for name, token := range map[string]string{
		"malformed":       "not-a-token",
		"empty":           "",
		"wrong signature": foreign.AccessToken,
		"revoked":         pair.AccessToken,
	} {
		_, err := svc.Verify(ctx, token)
		assert.ErrorIs(t, err, apierrors.ErrUnauthenticated, name)
	}
}

func TestVerify_RevokedImmediately(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	identity := testIdentity()

	pair, err := svc.Issue(ctx, identity)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.AccessToken, identity))

	_, err = svc.Verify(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, apierrors.ErrUnauthenticated)
}

func TestVerify_FailsClosedWhenRegistryDown(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, testIdentity())
	require.NoError(t, err)

	mr.SetError("connection refused")

	// The token is signature-valid and not revoked, but the revocation check
	// cannot run, so verification must refuse.
	_, err = svc.Verify(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, apierrors.ErrUnauthenticated)
}

func TestRevoke_BlacklistExpiresWithToken(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()
	identity := testIdentity()

	pair, err := svc.Issue(ctx, identity)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, pair.AccessToken, identity))

	// The blacklist entry must not outlive the token's own expiry.
	ttl := mr.TTL("blacklist:" + pair.AccessToken)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 15*time.Minute)

	// The refresh registry record is gone.
	assert.False(t, mr.Exists("refresh:u1"))
}

func TestRevoke_ExpiredTokenIsNoop(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()
	identity := testIdentity()

	require.NoError(t, svc.Revoke(ctx, "garbage", identity))
	assert.False(t, mr.Exists("blacklist:garbage"))
}

func TestRotate_ReplacesRegistryRecord(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	identity := testIdentity()

	pair, err := svc.Issue(ctx, identity)
	require.NoError(t, err)

	subject, err := svc.ValidateRefresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", subject)

	next, err := svc.Rotate(ctx, pair.RefreshToken, identity)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The replaced token is no longer rotatable.
	_, err = svc.Rotate(ctx, pair.RefreshToken, identity)
	assert.ErrorIs(t, err, apierrors.ErrTokenConflict)

	// The new one is.
	_, err = svc.Rotate(ctx, next.RefreshToken, identity)
	assert.NoError(t, err)
}

func TestRotate_ConcurrentSingleWinner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	identity := testIdentity()

	pair, err := svc.Issue(ctx, identity)
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Rotate(ctx, pair.RefreshToken, identity)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, apierrors.ErrTokenConflict)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestRotate_AfterRevokeFails(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	identity := testIdentity()

	pair, err := svc.Issue(ctx, identity)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, pair.AccessToken, identity))

	// The registry record is gone, so the refresh token cannot rotate.
	_, err = svc.Rotate(ctx, pair.RefreshToken, identity)
	assert.ErrorIs(t, err, apierrors.ErrTokenConflict)
}

func TestValidateRefresh_RejectsAccessToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, testIdentity())
	require.NoError(t, err)

	_, err = svc.ValidateRefresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, apierrors.ErrUnauthenticated)
}

func TestIssue_OverwritesPriorRefreshRecord(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	identity := testIdentity()

	first, err := svc.Issue(ctx, identity)
	require.NoError(t, err)
	second, err := svc.Issue(ctx, identity)
	require.NoError(t, err)

	// Only the latest refresh token is rotatable.
	_, err = svc.Rotate(ctx, first.RefreshToken, identity)
	assert.ErrorIs(t, err, apierrors.ErrTokenConflict)
	_, err = svc.Rotate(ctx, second.RefreshToken, identity)
	assert.NoError(t, err)
}
