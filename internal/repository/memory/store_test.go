package memory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	"github.com/NordCoder/Gatekeeper/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	u := &user.User{Username: "alice", PasswordHash: "h", Role: user.RoleAdmin}
	require.NoError(t, s.Create(ctx, u))
	assert.NotZero(t, u.ID)

	err := s.Create(ctx, &user.User{Username: "alice", PasswordHash: "x", Role: user.RoleUser})
	require.ErrorIs(t, err, user.ErrUsernameTaken)

	got, err := s.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	v, err := s.IncrementTokenVersion(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	got, err = s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TokenVersion)

	_, err = s.GetByID(ctx, 999)
	require.ErrorIs(t, err, user.ErrNotFound)
	_, err = s.IncrementTokenVersion(ctx, 999)
	require.ErrorIs(t, err, user.ErrNotFound)
}

func TestRefreshTokens_SingleSessionAndDelete(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	rt := s.RefreshTokens()
	now := time.Now().UTC()

	require.NoError(t, rt.Create(ctx, &auth.RefreshToken{UserID: 1, TokenHash: "a", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, rt.Create(ctx, &auth.RefreshToken{UserID: 1, TokenHash: "b", ExpiresAt: now.Add(time.Hour)}))

	_, err := rt.FindByHash(ctx, "a")
	require.ErrorIs(t, err, auth.ErrTokenNotFound)

	err = rt.Create(ctx, &auth.RefreshToken{UserID: 2, TokenHash: "b", ExpiresAt: now.Add(time.Hour)})
	require.ErrorIs(t, err, auth.ErrTokenConflict)

	del, err := rt.DeleteByHash(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), del.UserID)

	_, err = rt.DeleteByHash(ctx, "b")
	require.ErrorIs(t, err, auth.ErrTokenNotFound)
}

func TestRefreshTokens_DeleteExpiredAndAll(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	rt := s.RefreshTokens()
	now := time.Now().UTC()

	require.NoError(t, rt.Create(ctx, &auth.RefreshToken{UserID: 1, TokenHash: "old", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, rt.Create(ctx, &auth.RefreshToken{UserID: 2, TokenHash: "new", ExpiresAt: now.Add(time.Hour)}))

	n, err := rt.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = rt.DeleteAllForUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = rt.DeleteAllForUser(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRefreshTokens_ConcurrentDeleteHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	rt := s.RefreshTokens()
	require.NoError(t, rt.Create(ctx, &auth.RefreshToken{UserID: 1, TokenHash: "x", ExpiresAt: time.Now().Add(time.Hour)}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := rt.DeleteByHash(ctx, "x"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestWithTx_Nested(t *testing.T) {
	s := memory.New()
	calls := 0
	err := s.WithTx(context.Background(), func(ctx context.Context) error {
		return s.WithTx(ctx, func(context.Context) error {
			calls++
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
