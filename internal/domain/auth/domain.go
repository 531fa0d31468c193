package auth

import (
	"errors"
	"time"
)

var (
	ErrTokenNotFound = errors.New("refresh token not found")
	ErrTokenConflict = errors.New("refresh token value collision")
)

type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// Identity is the authenticated caller resolved from a valid access token.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type EventKind string

const (
	EventLogin     EventKind = "login"
	EventRefresh   EventKind = "refresh"
	EventLogout    EventKind = "logout"
	EventLogoutAll EventKind = "logout_all"
)

type SessionEvent struct {
	Kind         EventKind `json:"kind"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	TokenVersion int64     `json:"token_version"`
	At           time.Time `json:"at"`
}
