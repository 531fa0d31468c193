package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	"github.com/NordCoder/Gatekeeper/internal/obs"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var (
	errForbidden   = errors.New("insufficient role")
	errUnknownUser = errors.New("user not found")
)

// Sessions is the part of SessionManager the HTTP surface calls.
type Sessions interface {
	Register(ctx context.Context, username, password, role string) (int64, error)
	Login(ctx context.Context, username, password string) (*domainauth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domainauth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID int64) error
}

type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (domainauth.Identity, error)
}

type Controller struct {
	sessions Sessions
	guard    Authenticator
	log      *zap.Logger
}

func NewController(sessions Sessions, guard Authenticator, log *zap.Logger) *Controller {
	return &Controller{sessions: sessions, guard: guard, log: obs.Component(log, "http")}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutAllRequest struct {
	UserID int64 `json:"user_id,omitempty"`
}

type registerResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Mount registers the auth routes on mux.
func (c *Controller) Mount(mux *runtime.ServeMux) error {
	routes := []struct {
		method, path string
		h            runtime.HandlerFunc
	}{
		{http.MethodPost, "/v1/auth/register", c.register},
		{http.MethodPost, "/v1/auth/login", c.login},
		{http.MethodPost, "/v1/auth/refresh", c.refresh},
		{http.MethodPost, "/v1/auth/logout", c.logout},
		{http.MethodPost, "/v1/auth/logout-all", c.authenticated(c.logoutAll)},
		{http.MethodGet, "/v1/auth/profile", c.authenticated(c.profile)},
		{http.MethodGet, "/v1/auth/admin", c.authenticated(c.withRole(c.adminOnly, user.RoleAdmin))},
		{http.MethodGet, "/v1/auth/user", c.authenticated(c.withRole(c.userArea, user.RoleUser, user.RoleAdmin))},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.path, rt.h); err != nil {
			return fmt.Errorf("route %s %s: %w", rt.method, rt.path, err)
		}
	}
	return nil
}

func (c *Controller) register(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req credentialsRequest
	if !c.decode(w, r, &req) {
		return
	}
	id, err := c.sessions.Register(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		c.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{ID: id, Message: "user registered"})
}

func (c *Controller) login(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req credentialsRequest
	if !c.decode(w, r, &req) {
		return
	}
	pair, err := c.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		c.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (c *Controller) refresh(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req refreshRequest
	if !c.decode(w, r, &req) {
		return
	}
	pair, err := c.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		c.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// logout answers success for any input, unreadable bodies included. Store
// failures are logged by the session manager.
func (c *Controller) logout(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req refreshRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		req = refreshRequest{}
	}
	_ = c.sessions.Logout(r.Context(), req.RefreshToken)
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

type identityHandler func(w http.ResponseWriter, r *http.Request, id domainauth.Identity)

func (c *Controller) authenticated(next identityHandler) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		id, err := c.guard.Authenticate(r.Context(), BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			c.writeErr(w, r, err)
			return
		}
		next(w, r, id)
	}
}

func (c *Controller) withRole(next identityHandler, allowed ...string) identityHandler {
	return func(w http.ResponseWriter, r *http.Request, id domainauth.Identity) {
		if !RequireRole(id, allowed...) {
			c.writeErr(w, r, errForbidden)
			return
		}
		next(w, r, id)
	}
}

// logoutAll ends the caller's sessions, or another user's when the caller is
// an admin.
func (c *Controller) logoutAll(w http.ResponseWriter, r *http.Request, id domainauth.Identity) {
	var req logoutAllRequest
	if r.ContentLength != 0 && !c.decode(w, r, &req) {
		return
	}
	target := id.ID
	if req.UserID != 0 && req.UserID != id.ID {
		if !RequireRole(id, user.RoleAdmin) {
			c.writeErr(w, r, errForbidden)
			return
		}
		target = req.UserID
	}
	if err := c.sessions.LogoutAll(r.Context(), target); err != nil {
		// an unknown target says nothing about the caller's own credentials
		if target != id.ID && errors.Is(err, domainauth.ErrUnknownSubject) {
			err = fmt.Errorf("%w: %d", errUnknownUser, target)
		}
		c.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "all sessions ended"})
}

func (c *Controller) profile(w http.ResponseWriter, _ *http.Request, id domainauth.Identity) {
	writeJSON(w, http.StatusOK, id)
}

func (c *Controller) adminOnly(w http.ResponseWriter, _ *http.Request, id domainauth.Identity) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "welcome, admin " + id.Username})
}

func (c *Controller) userArea(w http.ResponseWriter, _ *http.Request, id domainauth.Identity) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "welcome, " + id.Username})
}

func (c *Controller) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		c.writeErr(w, r, fmt.Errorf("%w: malformed request body", domainauth.ErrValidation))
		return false
	}
	return true
}

func (c *Controller) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorStatus(err)
	if status == http.StatusInternalServerError {
		obs.WithTrace(r.Context(), c.log).Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, body)
}

func errorStatus(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, domainauth.ErrValidation):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, domainauth.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Error: err.Error()}
	case errors.Is(err, domainauth.ErrUnauthorized):
		return http.StatusUnauthorized, errorResponse{
			Error:  domainauth.ErrUnauthorized.Error(),
			Reason: domainauth.UnauthorizedReason(err),
		}
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, errorResponse{Error: err.Error()}
	case errors.Is(err, errUnknownUser):
		return http.StatusNotFound, errorResponse{Error: err.Error()}
	case errors.Is(err, domainauth.ErrConflict):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
