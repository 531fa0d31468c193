package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/NordCoder/Gatekeeper/internal/auth/authtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("STORAGE_SQLITE_PATH", filepath.Join(t.TempDir(), "authctl.db"))
	t.Setenv("AUTH_PRIVATE_KEY", authtest.PrivatePEM(authtest.Key(t)))
	t.Setenv("AUTH_PASSWORD_BCRYPT_COST", "4")
	t.Setenv("LOG_LEVEL", "error")
}

func fixedPassword(pw string) func(string) (string, error) {
	return func(string) (string, error) { return pw, nil }
}

func TestRun_CreateUserLogoutAllSweep(t *testing.T) {
	setupEnv(t)
	ctx := context.Background()
	cfg := "-config=" + filepath.Join(t.TempDir(), "missing.yaml")

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{cfg, "create-user", "-username", "alice", "-role", "admin"}, &out, fixedPassword("pw")))
	assert.Contains(t, out.String(), `created user "alice" (id 1, role admin)`)

	out.Reset()
	require.NoError(t, run(ctx, []string{cfg, "logout-all", "-user-id", "1"}, &out, nil))
	assert.Contains(t, out.String(), "ended all sessions of user 1")

	out.Reset()
	require.NoError(t, run(ctx, []string{cfg, "sweep"}, &out, nil))
	assert.Contains(t, out.String(), "deleted 0 expired refresh tokens")
}

func TestRun_Errors(t *testing.T) {
	setupEnv(t)
	ctx := context.Background()
	var out bytes.Buffer

	require.ErrorIs(t, run(ctx, nil, &out, nil), errUsage)
	require.ErrorIs(t, run(ctx, []string{"frobnicate"}, &out, nil), errUsage)
	require.ErrorIs(t, run(ctx, []string{"create-user"}, &out, fixedPassword("pw")), errUsage)
	require.ErrorIs(t, run(ctx, []string{"logout-all"}, &out, nil), errUsage)
	require.Error(t, run(ctx, []string{"logout-all", "-user-id", "99"}, &out, nil))
}
