// Package password hashes and verifies user passwords. Hashes are
// self-describing, so a deployment can switch algorithms without invalidating
// stored credentials.
package password

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidHash     = errors.New("password: invalid or unsupported hash")
	ErrEmptyPassword   = errors.New("password: empty")
	ErrUnknownHasher   = errors.New("password: unknown algorithm")
	ErrPasswordTooLong = errors.New("password: too long")
)

const (
	AlgBcrypt   = "bcrypt"
	AlgArgon2id = "argon2id"
)

type Hasher interface {
	Hash(password string) (string, error)
	// Verify reports whether password matches hash. A mismatch is (false, nil).
	Verify(hash, password string) (bool, error)
}

type Config struct {
	Algorithm  string
	BcryptCost int
	Argon2id   Argon2idParams
}

// New returns a hasher that hashes with the configured algorithm and verifies
// any supported format.
func New(cfg Config) (Hasher, error) {
	bc := Bcrypt{Cost: cfg.BcryptCost}
	ar := Argon2id{Params: cfg.Argon2id.withDefaults()}

	var primary Hasher
	switch strings.ToLower(cfg.Algorithm) {
	case "", AlgBcrypt:
		primary = bc
	case AlgArgon2id:
		primary = ar
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHasher, cfg.Algorithm)
	}
	return multi{primary: primary, bcrypt: bc, argon: ar}, nil
}

type multi struct {
	primary Hasher
	bcrypt  Bcrypt
	argon   Argon2id
}

func (m multi) Hash(password string) (string, error) { return m.primary.Hash(password) }

func (m multi) Verify(hash, password string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return m.argon.Verify(hash, password)
	case strings.HasPrefix(hash, "$2"):
		return m.bcrypt.Verify(hash, password)
	default:
		return false, ErrInvalidHash
	}
}
