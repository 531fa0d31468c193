package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tokens "github.com/NordCoder/Gatekeeper/internal/auth"
	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/domain/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name, username, password, role string
	}{
		{"empty username", "", "pw", ""},
		{"empty password", "bob", "", ""},
		{"unknown role", "bob", "pw", "root"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.sm.Register(ctx, tc.username, tc.password, tc.role)
			require.ErrorIs(t, err, domainauth.ErrValidation)
		})
	}
}

func TestRegister_DefaultsRoleAndHashesPassword(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id, err := f.sm.Register(context.Background(), "bob", "hunter2", "")
	require.NoError(t, err)

	u, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, user.RoleUser, u.Role)
	assert.NotEqual(t, "hunter2", u.PasswordHash)
	assert.Zero(t, u.TokenVersion)
}

func TestRegister_DuplicateIsConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sm.Register(ctx, "bob", "pw", "")
	require.NoError(t, err)
	_, err = f.sm.Register(ctx, "bob", "other", "admin")
	require.ErrorIs(t, err, domainauth.ErrConflict)
}

func TestLogin_AuthenticateReturnsRole(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id, pair := f.registerAndLogin(t, "alice", user.RoleAdmin)
	assert.Len(t, pair.RefreshToken, 2*tokens.DefaultRefreshTokenBytes)
	assert.Equal(t, f.clock.Now().Add(5*time.Minute), pair.AccessExpiresAt)
	assert.Equal(t, f.clock.Now().Add(7*24*time.Hour), pair.RefreshExpiresAt)

	ident, err := f.guard.Authenticate(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domainauth.Identity{ID: id, Username: "alice", Role: user.RoleAdmin}, ident)
	assert.True(t, RequireRole(ident, user.RoleAdmin))
	assert.False(t, RequireRole(ident, user.RoleUser))
}

func TestLogin_WrongPasswordIssuesNothing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sm.Register(ctx, "bob", "right", "")
	require.NoError(t, err)

	pair, err := f.sm.Login(ctx, "bob", "wrong")
	require.ErrorIs(t, err, domainauth.ErrInvalidCredentials)
	assert.Nil(t, pair)

	pair, err = f.sm.Login(ctx, "nobody", "wrong")
	require.ErrorIs(t, err, domainauth.ErrInvalidCredentials)
	assert.Nil(t, pair)

	u, err := f.store.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, u.TokenVersion)
	assert.Empty(t, f.events.kinds())
}

func TestLogin_SecondLoginEndsFirstSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, first := f.registerAndLogin(t, "bob", "")
	second, err := f.sm.Login(ctx, "bob", "s3cret-bob")
	require.NoError(t, err)

	_, err = f.sm.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, domainauth.ErrRefreshNotFound)

	_, err = f.guard.Authenticate(ctx, first.AccessToken)
	require.ErrorIs(t, err, domainauth.ErrRevoked)

	_, err = f.guard.Authenticate(ctx, second.AccessToken)
	require.NoError(t, err)
}

func TestRefresh_SingleUse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, pair := f.registerAndLogin(t, "bob", "")

	next, err := f.sm.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = f.sm.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domainauth.ErrRefreshNotFound)
	assert.Equal(t, domainauth.ReasonNotFound, domainauth.UnauthorizedReason(err))

	_, err = f.guard.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, domainauth.ErrRevoked)
	_, err = f.guard.Authenticate(ctx, next.AccessToken)
	require.NoError(t, err)
}

func TestRefresh_EmptyToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.sm.Refresh(context.Background(), "")
	require.ErrorIs(t, err, domainauth.ErrRefreshNotFound)
}

func TestRefresh_ExpiredThenNotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, pair := f.registerAndLogin(t, "bob", "")
	f.clock.Advance(7*24*time.Hour + time.Second)

	_, err := f.sm.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domainauth.ErrRefreshExpired)
	assert.Equal(t, domainauth.ReasonExpired, domainauth.UnauthorizedReason(err))

	_, err = f.sm.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domainauth.ErrRefreshNotFound)
}

func TestRefresh_ConcurrentRotationHasOneWinner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, pair := f.registerAndLogin(t, "bob", "")

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		notFound int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sm.Refresh(ctx, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domainauth.ErrRefreshNotFound):
				notFound++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, notFound)
}

func TestLogout_RevokesAccessToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, pair := f.registerAndLogin(t, "bob", "")
	_, err := f.guard.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.sm.Logout(ctx, pair.RefreshToken))

	_, err = f.guard.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, domainauth.ErrRevoked)
	_, err = f.sm.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domainauth.ErrRefreshNotFound)
}

func TestLogout_UnknownTokenIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, pair := f.registerAndLogin(t, "bob", "")

	require.NoError(t, f.sm.Logout(ctx, ""))
	require.NoError(t, f.sm.Logout(ctx, "does-not-exist"))

	_, err := f.guard.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []domainauth.EventKind{domainauth.EventLogin}, f.events.kinds())
}

func TestLogoutAll_BumpsVersionOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	id, pair := f.registerAndLogin(t, "bob", "")
	before, err := f.store.GetByID(ctx, id)
	require.NoError(t, err)

	require.NoError(t, f.sm.LogoutAll(ctx, id))

	after, err := f.store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.TokenVersion+1, after.TokenVersion)

	_, err = f.sm.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domainauth.ErrRefreshNotFound)
	_, err = f.guard.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, domainauth.ErrRevoked)
}

func TestLogoutAll_UnknownUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	err := f.sm.LogoutAll(context.Background(), 404)
	require.ErrorIs(t, err, domainauth.ErrUnknownSubject)
	require.ErrorIs(t, err, domainauth.ErrUnauthorized)
}

func TestSessionEvents_FollowLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	id, pair := f.registerAndLogin(t, "bob", "")
	next, err := f.sm.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NoError(t, f.sm.Logout(ctx, next.RefreshToken))
	require.NoError(t, f.sm.LogoutAll(ctx, id))

	assert.Equal(t, []domainauth.EventKind{
		domainauth.EventLogin,
		domainauth.EventRefresh,
		domainauth.EventLogout,
		domainauth.EventLogoutAll,
	}, f.events.kinds())

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	for i, ev := range f.events.events {
		assert.Equal(t, id, ev.UserID)
		assert.Equal(t, "bob", ev.Username)
		assert.Equal(t, int64(i+1), ev.TokenVersion)
	}
}
