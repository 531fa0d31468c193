package auth_server_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_PUBLIC_KEY_PATH", "/etc/gatekeeper/public.pem")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gatekeeper", cfg.App.Name)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, 64, cfg.Auth.RefreshTokenBytes)
	assert.Zero(t, cfg.Auth.ClockSkew)
	assert.Equal(t, []string{"user", "admin"}, cfg.Auth.Roles)
	assert.Equal(t, "bcrypt", cfg.Auth.Password.Algorithm)
	assert.EqualValues(t, 64*1024, cfg.Auth.Password.Argon2id.MemoryKiB)
	assert.Equal(t, "auth.session-events", cfg.Kafka.EventsTopic)
	assert.Equal(t, "auth.revocations", cfg.Kafka.RevocationsTopic)
	assert.Equal(t, 2*time.Second, cfg.DB.QueryTimeout)
	assert.Equal(t, "/etc/gatekeeper/public.pem", cfg.Auth.PublicKeySource().Path)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatekeeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: sqlite
  sqlite:
    path: /var/lib/gatekeeper.db
auth:
  access_ttl: 2m
  clock_skew: 5s
  private_key_path: /keys/private.pem
  roles: [user, admin, auditor]
  password:
    algorithm: argon2id
`), 0o600))
	t.Setenv("AUTH_ACCESS_TTL", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/gatekeeper.db", cfg.Storage.SQLite.Path)
	assert.Equal(t, 90*time.Second, cfg.Auth.AccessTTL)
	assert.Equal(t, 5*time.Second, cfg.Auth.ClockSkew)
	assert.Equal(t, []string{"user", "admin", "auditor"}, cfg.Auth.Roles)
	assert.Equal(t, "argon2id", cfg.Auth.Password.AsHasherConfig().Algorithm)
	assert.Equal(t, "/keys/private.pem", cfg.Auth.PrivateKeySource().Path)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"no keys", map[string]string{}},
		{"unknown driver", map[string]string{"AUTH_PUBLIC_KEY": "pem", "STORAGE_DRIVER": "mongo"}},
		{"short refresh token", map[string]string{"AUTH_PUBLIC_KEY": "pem", "AUTH_REFRESH_TOKEN_BYTES": "8"}},
		{"negative skew", map[string]string{"AUTH_PUBLIC_KEY": "pem", "AUTH_CLOCK_SKEW": "-1s"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			var cfgErr ErrConfig
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}
