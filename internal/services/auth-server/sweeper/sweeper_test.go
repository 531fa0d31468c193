package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type failingTokens struct {
	domainauth.RefreshTokenRepo
}

func (failingTokens) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("db down")
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tokens := memory.New().RefreshTokens()

	require.NoError(t, tokens.Create(ctx, &domainauth.RefreshToken{UserID: 1, TokenHash: "old", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, tokens.Create(ctx, &domainauth.RefreshToken{UserID: 2, TokenHash: "live", ExpiresAt: now.Add(time.Hour)}))

	uc := NewUC(tokens, func() time.Time { return now })
	n, err := uc.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = tokens.FindByHash(ctx, "old")
	require.ErrorIs(t, err, domainauth.ErrTokenNotFound)
	_, err = tokens.FindByHash(ctx, "live")
	require.NoError(t, err)
}

func TestSweep_WrapsStoreError(t *testing.T) {
	t.Parallel()
	_, err := NewUC(failingTokens{}, nil).Sweep(context.Background())
	require.ErrorContains(t, err, "delete expired")
}

func TestRunner_SweepsOnStartAndStops(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tokens := memory.New().RefreshTokens()
	require.NoError(t, tokens.Create(ctx, &domainauth.RefreshToken{UserID: 1, TokenHash: "old", ExpiresAt: now.Add(-time.Minute)}))

	r := New(zaptest.NewLogger(t), NewUC(tokens, func() time.Time { return now }), time.Hour)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := tokens.FindByHash(context.Background(), "old")
		return errors.Is(err, domainauth.ErrTokenNotFound)
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}
