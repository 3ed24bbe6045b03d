package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/repomanager"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTokenStore_SaveValidateRevoke(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	uid := e.register(t, "alice").User.ID

	require.NoError(t, e.tokens.Save(ctx, uid, "tok-1", time.Hour))

	got, ok, err := e.tokens.Validate(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uid, got)

	_, ok, err = e.tokens.Validate(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, e.tokens.Revoke(ctx, "tok-1"))
	require.NoError(t, e.tokens.Revoke(ctx, "tok-1"))

	_, ok, err = e.tokens.Validate(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefreshTokenStore_StoresDigestOnly(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	uid := e.register(t, "alice").User.ID

	require.NoError(t, e.tokens.Save(ctx, uid, "plain-token", time.Hour))

	var n int
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(*) FROM refresh_tokens WHERE token_hash = $1`, "plain-token").Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(*) FROM refresh_tokens WHERE token_hash = $1`, e.vault.Hash("plain-token")).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestRefreshTokenStore_ExpiredIsPurgedOnAccess(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	uid := e.register(t, "alice").User.ID

	require.NoError(t, e.tokens.Save(ctx, uid, "old", -time.Minute))

	_, ok, err := e.tokens.Validate(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.m.RefreshTokens(e.db).Find(ctx, e.vault.Hash("old"))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRefreshTokenStore_RotateIsSingleUse(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	uid := e.register(t, "alice").User.ID
	require.NoError(t, e.tokens.Save(ctx, uid, "first", time.Hour))

	gotUID, next, err := e.tokens.Rotate(ctx, "first", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, uid, gotUID)
	assert.NotEqual(t, "first", next)
	assert.Len(t, next, 64)

	_, _, err = e.tokens.Rotate(ctx, "first", time.Hour)
	assert.ErrorIs(t, err, common.ErrInvalidRefreshToken)

	_, ok, err := e.tokens.Validate(ctx, next)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRefreshTokenStore_RotateExpiredDeletesAndFails(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	uid := e.register(t, "alice").User.ID
	require.NoError(t, e.tokens.Save(ctx, uid, "stale", -time.Second))

	_, _, err := e.tokens.Rotate(ctx, "stale", time.Hour)
	assert.ErrorIs(t, err, common.ErrInvalidRefreshToken)

	_, err = e.m.RefreshTokens(e.db).Find(ctx, e.vault.Hash("stale"))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func rotateConcurrently(t *testing.T, e *testEnv, token string, workers int) (int32, int32) {
	t.Helper()
	var ok, invalid int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _, err := e.tokens.Rotate(context.Background(), token, time.Hour)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case assert.ErrorIs(t, err, common.ErrInvalidRefreshToken):
				atomic.AddInt32(&invalid, 1)
			}
		}()
	}
	close(start)
	wg.Wait()
	return ok, invalid
}

func TestRefreshTokenStore_ConcurrentRotateExactlyOnce(t *testing.T) {
	e := newTestEnv(t)
	uid := e.register(t, "alice").User.ID
	require.NoError(t, e.tokens.Save(context.Background(), uid, "shared", time.Hour))

	ok, invalid := rotateConcurrently(t, e, "shared", 8)
	assert.EqualValues(t, 1, ok)
	assert.EqualValues(t, 7, invalid)
}

func TestRefreshTokenStore_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e := newTestEnv(t, repomanager.WithRefreshTokens(refreshtokens.NewRedisRepository(client)))
	ctx := context.Background()
	uid := e.register(t, "alice").User.ID

	require.NoError(t, e.tokens.Save(ctx, uid, "shared", time.Hour))
	ok, invalid := rotateConcurrently(t, e, "shared", 8)
	assert.EqualValues(t, 1, ok)
	assert.EqualValues(t, 7, invalid)

	n, err := e.tokens.RevokeAll(ctx, uid)
	require.NoError(t, err)
	// the registration token and the rotated one
	assert.EqualValues(t, 2, n)
}

func TestUserService_RefreshForMissingUser(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e := newTestEnv(t, repomanager.WithRefreshTokens(refreshtokens.NewRedisRepository(client)))
	ctx := context.Background()
	s := e.register(t, "alice")

	// tokens in Redis outlive the user row
	_, err := e.db.Exec(`DELETE FROM users WHERE id = $1`, s.User.ID)
	require.NoError(t, err)

	_, err = e.users.Refresh(ctx, s.Tokens.RefreshToken)
	require.ErrorIs(t, err, common.ErrInvalidRefreshToken)

	n, err := e.tokens.RevokeAll(ctx, s.User.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "replacement token must not be left behind")
}

func TestRefreshTokenStore_PurgeExpiredAndRevokeAll(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice").User.ID
	bob := e.register(t, "bob").User.ID

	require.NoError(t, e.tokens.Save(ctx, alice, "a-old", -time.Minute))
	require.NoError(t, e.tokens.Save(ctx, alice, "a-live", time.Hour))
	require.NoError(t, e.tokens.Save(ctx, bob, "b-live", time.Hour))

	n, err := e.tokens.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = e.tokens.RevokeAll(ctx, alice)
	require.NoError(t, err)
	// a-live plus the registration session
	assert.EqualValues(t, 2, n)

	_, ok, err := e.tokens.Validate(ctx, "b-live")
	require.NoError(t, err)
	assert.True(t, ok)
}
