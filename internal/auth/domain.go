package auth

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the payload of an access token. Subject holds the user ID.
type AccessClaims struct {
	Username     string `json:"username"`
	Role         string `json:"role"`
	TokenVersion int64  `json:"tv"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}
