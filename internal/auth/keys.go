package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoKey = errors.New("no key configured")

// KeySource points at a PEM key either inline or on disk. Inline wins.
type KeySource struct {
	PEM  string
	Path string
}

func (s KeySource) read() ([]byte, error) {
	if strings.TrimSpace(s.PEM) != "" {
		// env vars often carry the PEM with escaped newlines
		return []byte(strings.ReplaceAll(s.PEM, `\n`, "\n")), nil
	}
	if s.Path == "" {
		return nil, ErrNoKey
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read key file %s: %w", s.Path, err)
	}
	return b, nil
}

func LoadPrivateKey(src KeySource) (*rsa.PrivateKey, error) {
	b, err := src.read()
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

func LoadPublicKey(src KeySource) (*rsa.PublicKey, error) {
	b, err := src.read()
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return key, nil
}

// LoadKeyPair loads the signing key and the verification key. When the public
// key is not configured it is derived from the private one.
func LoadKeyPair(private, public KeySource) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	priv, err := LoadPrivateKey(private)
	if err != nil {
		return nil, nil, err
	}
	pub, err := LoadPublicKey(public)
	switch {
	case errors.Is(err, ErrNoKey):
		return priv, &priv.PublicKey, nil
	case err != nil:
		return nil, nil, err
	}
	if pub.N.Cmp(priv.PublicKey.N) != 0 || pub.E != priv.PublicKey.E {
		return nil, nil, errors.New("public key does not match private key")
	}
	return priv, pub, nil
}
