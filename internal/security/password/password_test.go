package password_test

import (
	"strings"
	"testing"

	"github.com/NordCoder/Gatekeeper/internal/security/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fastArgon = password.Argon2idParams{MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1}

func TestHasher_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cfg    password.Config
		prefix string
	}{
		{"bcrypt default", password.Config{BcryptCost: bcrypt.MinCost}, "$2"},
		{"argon2id", password.Config{Algorithm: password.AlgArgon2id, Argon2id: fastArgon}, "$argon2id$v=19$"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, err := password.New(tt.cfg)
			require.NoError(t, err)

			hash, err := h.Hash("s3cret")
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(hash, tt.prefix), hash)
			assert.NotContains(t, hash, "s3cret")

			ok, err := h.Verify(hash, "s3cret")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = h.Verify(hash, "wrong")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestHasher_VerifiesOtherAlgorithm(t *testing.T) {
	t.Parallel()

	bc, err := password.New(password.Config{BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	ar, err := password.New(password.Config{Algorithm: password.AlgArgon2id, Argon2id: fastArgon})
	require.NoError(t, err)

	legacy, err := bc.Hash("pw")
	require.NoError(t, err)

	ok, err := ar.Verify(legacy, "pw")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasher_SaltsDiffer(t *testing.T) {
	t.Parallel()

	h, err := password.New(password.Config{Algorithm: password.AlgArgon2id, Argon2id: fastArgon})
	require.NoError(t, err)
	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHasher_Errors(t *testing.T) {
	t.Parallel()

	_, err := password.New(password.Config{Algorithm: "md5"})
	require.ErrorIs(t, err, password.ErrUnknownHasher)

	h, err := password.New(password.Config{BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)

	_, err = h.Hash("")
	require.ErrorIs(t, err, password.ErrEmptyPassword)

	for _, bad := range []string{"", "plain", "$argon2id$v=19$broken", "$argon2id$v=18$m=1,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5"} {
		ok, err := h.Verify(bad, "pw")
		assert.False(t, ok)
		assert.ErrorIs(t, err, password.ErrInvalidHash, bad)
	}
}
