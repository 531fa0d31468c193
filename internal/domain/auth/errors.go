package auth

import (
	"errors"
	"fmt"
)

var (
	ErrConflict           = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrValidation         = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Unauthorized reasons. Each wraps ErrUnauthorized.
var (
	ErrRefreshNotFound = newUnauthorized(ReasonNotFound, "refresh token not found")
	ErrRefreshExpired  = newUnauthorized(ReasonExpired, "refresh token expired")
	ErrAccessExpired   = newUnauthorized(ReasonExpired, "access token expired")
	ErrRevoked         = newUnauthorized(ReasonRevoked, "access token revoked")
	ErrMalformed       = newUnauthorized(ReasonMalformed, "malformed token")
	ErrUnknownSubject  = newUnauthorized(ReasonUnknownSubject, "unknown subject")
)

const (
	ReasonNotFound       = "not_found"
	ReasonExpired        = "expired"
	ReasonRevoked        = "revoked"
	ReasonMalformed      = "malformed"
	ReasonUnknownSubject = "unknown_subject"
)

type UnauthorizedError struct {
	Reason string
	msg    string
}

func newUnauthorized(reason, msg string) *UnauthorizedError {
	return &UnauthorizedError{Reason: reason, msg: msg}
}

func (e *UnauthorizedError) Error() string { return fmt.Sprintf("%s: %s", ErrUnauthorized, e.msg) }

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

// UnauthorizedReason returns the reason carried by err, or "" when err is not
// an unauthorized error.
func UnauthorizedReason(err error) string {
	var ue *UnauthorizedError
	if errors.As(err, &ue) {
		return ue.Reason
	}
	return ""
}
