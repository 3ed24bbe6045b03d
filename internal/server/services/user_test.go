package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_RegisterLoginMe(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	s := e.register(t, "alice")
	assert.Equal(t, []string{"viewer"}, s.User.Roles.Strings())
	assert.Equal(t, "alice", s.User.DisplayName)
	assert.NotEmpty(t, s.Tokens.AccessToken)
	assert.NotEmpty(t, s.Tokens.RefreshToken)

	id, err := e.issuer.Verify(s.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, id.ID)
	assert.Equal(t, []string{"viewer"}, id.Roles)

	login, err := e.users.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, login.User.ID)

	_, err = e.users.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = e.users.Login(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	me, err := e.users.Me(ctx, s.User.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"board:view", "card:view", "system:view", "theme:view"}, me.Permissions)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.AuthEventsTotal.WithLabelValues("login", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.AuthEventsTotal.WithLabelValues("login", "invalid_credentials")))
}

func TestUserService_RegisterRejects(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.register(t, "alice")

	_, err := e.users.Register(ctx, RegisterInput{UserName: "alice", Password: "password123"})
	assert.ErrorIs(t, err, common.ErrDuplicateUsername)

	cases := []RegisterInput{
		{UserName: "", Password: "password123"},
		{UserName: "al", Password: "password123"},
		{UserName: "bad name", Password: "password123"},
		{UserName: "bob", Password: "short"},
	}
	for _, in := range cases {
		_, err := e.users.Register(ctx, in)
		assert.ErrorIs(t, err, common.ErrValidation, "%+v", in)
	}
}

func TestUserService_RefreshRotates(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	s := e.register(t, "alice")

	pair, err := e.users.Refresh(ctx, s.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, s.Tokens.RefreshToken, pair.RefreshToken)

	_, err = e.users.Refresh(ctx, s.Tokens.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidRefreshToken)

	_, err = e.users.Refresh(ctx, "")
	assert.ErrorIs(t, err, common.ErrInvalidRefreshToken)

	_, err = e.users.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
}

func TestUserService_RefreshCarriesCurrentRoles(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	s := e.register(t, "alice")

	_, err := e.users.SetRoles(ctx, s.User.ID, []string{"viewer", "editor"})
	require.NoError(t, err)

	pair, err := e.users.Refresh(ctx, s.Tokens.RefreshToken)
	require.NoError(t, err)
	id, err := e.issuer.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"viewer", "editor"}, id.Roles)
}

func TestUserService_LogoutIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	s := e.register(t, "alice")

	require.NoError(t, e.users.Logout(ctx, s.Tokens.RefreshToken))
	require.NoError(t, e.users.Logout(ctx, s.Tokens.RefreshToken))
	require.NoError(t, e.users.Logout(ctx, ""))

	_, err := e.users.Refresh(ctx, s.Tokens.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidRefreshToken)
}

func TestUserService_ChangePasswordRevokesSessions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	s := e.register(t, "alice")
	second, err := e.users.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	err = e.users.ChangePassword(ctx, s.User.ID, PasswordChange{CurrentPassword: "nope-nope", NewPassword: "new-password"})
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	require.NoError(t, e.users.ChangePassword(ctx, s.User.ID, PasswordChange{CurrentPassword: "password123", NewPassword: "new-password"}))

	for _, tok := range []string{s.Tokens.RefreshToken, second.Tokens.RefreshToken} {
		_, err := e.users.Refresh(ctx, tok)
		assert.ErrorIs(t, err, common.ErrInvalidRefreshToken)
	}

	_, err = e.users.Login(ctx, "alice", "password123")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = e.users.Login(ctx, "alice", "new-password")
	require.NoError(t, err)
}

func TestUserService_UpdateProfile(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	s := e.register(t, "alice")

	u, err := e.users.UpdateProfile(ctx, s.User.ID, ProfileInput{DisplayName: "Alice A.", Theme: "nord"})
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", u.DisplayName)
	assert.Equal(t, "nord", u.Theme)

	_, err = e.users.UpdateProfile(ctx, "missing", ProfileInput{DisplayName: "x"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUserService_SetRoles(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	s := e.register(t, "alice")

	u, err := e.users.SetRoles(ctx, s.User.ID, []string{"ghost"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, u.Roles.Strings())
	p, err := e.users.Me(ctx, s.User.ID)
	require.NoError(t, err)
	assert.Empty(t, p.Permissions)

	_, err = e.users.SetRoles(ctx, s.User.ID, nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = e.roles.Create(ctx, RoleInput{Name: "media", Permissions: []string{"integration:manage"}})
	require.NoError(t, err)
	u, err = e.users.SetRoles(ctx, s.User.ID, []string{"media"})
	require.NoError(t, err)
	assert.Equal(t, []string{"media"}, u.Roles.Strings())

	users, err := e.users.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserService_EnsureAdmin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	created, err := e.users.EnsureAdmin(ctx, "root", "admin-password")
	require.NoError(t, err)
	assert.True(t, created)

	e.register(t, "alice")
	created, err = e.users.EnsureAdmin(ctx, "alice", "another-password")
	require.NoError(t, err)
	assert.False(t, created)

	s, err := e.users.Login(ctx, "alice", "another-password")
	require.NoError(t, err)
	assert.Equal(t, []string{"viewer", "admin"}, s.User.Roles.Strings())
}

func TestUserService_SeedFromFile(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.register(t, "alice")

	path := filepath.Join(t.TempDir(), "users.yaml")
	doc := `
users:
  - username: alice
    password: ignored-password
  - username: admin
    password: admin-password
    display_name: Administrator
    roles: [admin]
  - username: guest
    password: guest-password
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	n, err := e.users.SeedFromFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	s, err := e.users.Login(ctx, "admin", "admin-password")
	require.NoError(t, err)
	assert.Equal(t, "Administrator", s.User.DisplayName)
	assert.Equal(t, []string{"admin"}, s.User.Roles.Strings())

	s, err = e.users.Login(ctx, "guest", "guest-password")
	require.NoError(t, err)
	assert.Equal(t, []string{"viewer"}, s.User.Roles.Strings())

	_, err = e.users.Login(ctx, "alice", "ignored-password")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("users: [::"), 0o600))
	_, err = e.users.SeedFromFile(ctx, bad)
	assert.ErrorIs(t, err, common.ErrConfiguration)
}
