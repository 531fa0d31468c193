package user

import "context"

type Repo interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// IncrementTokenVersion bumps the user's token version by one and returns
	// the new value.
	IncrementTokenVersion(ctx context.Context, id int64) (int64, error)
}
