package user

import (
	"errors"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	// TokenVersion is embedded into every access token; bumping it revokes
	// all access tokens issued before.
	TokenVersion int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
