package auth

import (
	"context"
	"time"
)

// RefreshTokenRepo stores at most one refresh token per user. Create replaces
// any token the user already holds.
type RefreshTokenRepo interface {
	Create(ctx context.Context, t *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	// DeleteByHash removes the token and returns the removed row. A second
	// caller racing on the same hash gets ErrTokenNotFound.
	DeleteByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	DeleteAllForUser(ctx context.Context, userID int64) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type SessionEvents interface {
	Emit(ctx context.Context, ev SessionEvent) error
}

type NopEvents struct{}

func (NopEvents) Emit(context.Context, SessionEvent) error { return nil }
