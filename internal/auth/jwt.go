package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"time"

	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type SignerConfig struct {
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// Signer mints RS256 access tokens. Only processes that issue sessions hold one.
type Signer struct {
	key *rsa.PrivateKey
	cfg SignerConfig
}

func NewSigner(key *rsa.PrivateKey, cfg SignerConfig) *Signer {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &Signer{key: key, cfg: cfg}
}

func (s *Signer) Sign(userID int64, username, role string, tokenVersion int64) (string, time.Time, error) {
	now := s.cfg.Now()
	exp := now.Add(s.cfg.TTL)
	claims := AccessClaims{
		Username:     username,
		Role:         role,
		TokenVersion: tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, exp, nil
}

type VerifierConfig struct {
	Issuer string
	Leeway time.Duration
	Now    func() time.Time
}

// Verifier checks access tokens with the public key alone.
type Verifier struct {
	key *rsa.PublicKey
	cfg VerifierConfig
}

func NewVerifier(key *rsa.PublicKey, cfg VerifierConfig) *Verifier {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Verifier{key: key, cfg: cfg}
}

// Verify returns the token claims, domainauth.ErrAccessExpired for an expired
// token and domainauth.ErrMalformed for anything else that fails. iat is not
// checked, so a signer whose clock runs ahead is accepted.
func (v *Verifier) Verify(token string) (*AccessClaims, error) {
	if token == "" {
		return nil, domainauth.ErrMalformed
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.cfg.Leeway),
		jwt.WithTimeFunc(v.cfg.Now),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}

	var claims AccessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, domainauth.ErrAccessExpired
	default:
		return nil, fmt.Errorf("%w: %v", domainauth.ErrMalformed, err)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, domainauth.ErrMalformed
	}
	return &claims, nil
}
