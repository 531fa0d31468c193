package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T) (*fixture, *httptest.Server) {
	t.Helper()
	f := newFixture(t)
	mux := runtime.NewServeMux()
	require.NoError(t, NewController(f.sm, f.guard, zaptest.NewLogger(t)).Mount(mux))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func do(t *testing.T, srv *httptest.Server, method, path, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestController_SessionFlow(t *testing.T) {
	t.Parallel()
	_, srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"username": "alice", "password": "pw", "role": "admin",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 1, body["id"])

	resp, body = do(t, srv, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "alice", "password": "pw",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	access := body["access_token"].(string)
	refresh := body["refresh_token"].(string)

	resp, body = do(t, srv, http.MethodGet, "/v1/auth/profile", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "admin", body["role"])

	resp, _ = do(t, srv, http.MethodGet, "/v1/auth/admin", access, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodGet, "/v1/auth/user", access, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, srv, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newRefresh := body["refresh_token"].(string)

	resp, body = do(t, srv, http.MethodGet, "/v1/auth/profile", access, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, domainauth.ReasonRevoked, body["reason"])

	resp, _ = do(t, srv, http.MethodPost, "/v1/auth/logout", "", map[string]string{"refresh_token": newRefresh})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, srv, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": newRefresh})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, domainauth.ReasonNotFound, body["reason"])
}

func TestController_ErrorMapping(t *testing.T) {
	t.Parallel()
	_, srv := newTestServer(t)

	resp, _ := do(t, srv, http.MethodPost, "/v1/auth/register", "", map[string]string{"username": "bob", "password": "pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	cases := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"validation", "/v1/auth/register", map[string]string{"username": "", "password": "pw"}, http.StatusBadRequest},
		{"conflict", "/v1/auth/register", map[string]string{"username": "bob", "password": "x"}, http.StatusConflict},
		{"bad credentials", "/v1/auth/login", map[string]string{"username": "bob", "password": "nope"}, http.StatusUnauthorized},
		{"unknown refresh", "/v1/auth/refresh", map[string]string{"refresh_token": "zzz"}, http.StatusUnauthorized},
		{"logout unknown", "/v1/auth/logout", map[string]string{"refresh_token": "zzz"}, http.StatusOK},
		{"logout empty", "/v1/auth/logout", nil, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := do(t, srv, http.MethodPost, tc.path, "", tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}

	resp, body := do(t, srv, http.MethodGet, "/v1/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, domainauth.ReasonMalformed, body["reason"])
}

func TestController_RoleChecks(t *testing.T) {
	t.Parallel()
	f, srv := newTestServer(t)

	bobID, bob := f.registerAndLogin(t, "bob", "user")
	_, admin := f.registerAndLogin(t, "root", "admin")

	resp, _ := do(t, srv, http.MethodGet, "/v1/auth/admin", bob.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/v1/auth/logout-all", bob.AccessToken, map[string]int64{"user_id": bobID + 1})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/v1/auth/logout-all", admin.AccessToken, map[string]int64{"user_id": bobID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, srv, http.MethodGet, "/v1/auth/user", bob.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, domainauth.ReasonRevoked, body["reason"])

	resp, _ = do(t, srv, http.MethodGet, "/v1/auth/profile", admin.AccessToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "admin session is untouched")

	resp, body = do(t, srv, http.MethodPost, "/v1/auth/logout-all", admin.AccessToken, map[string]int64{"user_id": 9999})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, body["reason"])

	resp, _ = do(t, srv, http.MethodGet, "/v1/auth/profile", admin.AccessToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "unknown target leaves the admin signed in")
}

func TestController_LogoutIgnoresUnreadableBody(t *testing.T) {
	t.Parallel()
	f, srv := newTestServer(t)
	_, pair := f.registerAndLogin(t, "dave", "user")

	for _, raw := range []string{"{not json", "[]", `{"refresh_token": 5}`} {
		resp, err := srv.Client().Post(srv.URL+"/v1/auth/logout", "application/json", strings.NewReader(raw))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, raw)
	}

	resp, _ := do(t, srv, http.MethodGet, "/v1/auth/profile", pair.AccessToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "no session was touched")
}
