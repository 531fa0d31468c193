package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tokens "github.com/NordCoder/Gatekeeper/internal/auth"
	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	"github.com/NordCoder/Gatekeeper/internal/obs"
	"github.com/NordCoder/Gatekeeper/internal/security/password"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	mOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_operations_total",
		Help: "Session manager operations by result",
	}, []string{"op", "result"})
	mOpDur = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auth_operation_duration_seconds",
		Help:    "Session manager operation latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)

const dummyPassword = "gatekeeper-timing-equalizer"

// TokenSigner mints access tokens.
type TokenSigner interface {
	Sign(userID int64, username, role string, tokenVersion int64) (string, time.Time, error)
}

type Config struct {
	RefreshTTL        time.Duration
	RefreshTokenBytes int
	Roles             []string
	Now               func() time.Time
}

// SessionManager owns the credential lifecycle. One refresh token exists per
// user at a time: login replaces it and every rotation or logout bumps the
// user's token version, which revokes outstanding access tokens.
type SessionManager struct {
	users  user.Repo
	tokens domainauth.RefreshTokenRepo
	tx     domainauth.Transactor
	hasher password.Hasher
	signer TokenSigner
	events domainauth.SessionEvents
	cfg    Config
	roles  map[string]bool
	log    *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewSessionManager(
	users user.Repo,
	rt domainauth.RefreshTokenRepo,
	tx domainauth.Transactor,
	hasher password.Hasher,
	signer TokenSigner,
	events domainauth.SessionEvents,
	cfg Config,
	log *zap.Logger,
) *SessionManager {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.RefreshTokenBytes <= 0 {
		cfg.RefreshTokenBytes = tokens.DefaultRefreshTokenBytes
	}
	if len(cfg.Roles) == 0 {
		cfg.Roles = []string{user.RoleUser, user.RoleAdmin}
	}
	if events == nil {
		events = domainauth.NopEvents{}
	}
	roles := make(map[string]bool, len(cfg.Roles))
	for _, r := range cfg.Roles {
		roles[r] = true
	}
	return &SessionManager{
		users:  users,
		tokens: rt,
		tx:     tx,
		hasher: hasher,
		signer: signer,
		events: events,
		cfg:    cfg,
		roles:  roles,
		log:    obs.Component(log, "session-manager"),
	}
}

func (m *SessionManager) Register(ctx context.Context, username, plain, role string) (id int64, err error) {
	ctx, span := m.start(ctx, "register")
	defer func(start time.Time) { m.finish(span, "register", start, err) }(time.Now())

	if username == "" || plain == "" {
		return 0, fmt.Errorf("%w: username and password are required", domainauth.ErrValidation)
	}
	if role == "" {
		role = user.RoleUser
	}
	if !m.roles[role] {
		return 0, fmt.Errorf("%w: unknown role %q", domainauth.ErrValidation, role)
	}

	hash, err := m.hasher.Hash(plain)
	if errors.Is(err, password.ErrPasswordTooLong) || errors.Is(err, password.ErrEmptyPassword) {
		return 0, fmt.Errorf("%w: %v", domainauth.ErrValidation, err)
	}
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	u := &user.User{Username: username, PasswordHash: hash, Role: role}
	if err := m.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrUsernameTaken) {
			return 0, domainauth.ErrConflict
		}
		return 0, fmt.Errorf("create user: %w", err)
	}

	span.SetAttributes(attribute.Int64("user.id", u.ID))
	obs.WithTrace(ctx, m.log).Info("user registered",
		zap.Int64("user_id", u.ID), zap.String("username", u.Username), zap.String("role", u.Role))
	return u.ID, nil
}

// Login verifies credentials and starts a new session, ending any session the
// user already had.
func (m *SessionManager) Login(ctx context.Context, username, plain string) (pair *domainauth.TokenPair, err error) {
	ctx, span := m.start(ctx, "login")
	defer func(start time.Time) { m.finish(span, "login", start, err) }(time.Now())

	u, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return nil, fmt.Errorf("get user: %w", err)
		}
		m.equalizeTiming(plain)
		return nil, domainauth.ErrInvalidCredentials
	}

	ok, err := m.hasher.Verify(u.PasswordHash, plain)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, domainauth.ErrInvalidCredentials
	}

	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := m.tokens.DeleteAllForUser(ctx, u.ID); err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		tv, err := m.users.IncrementTokenVersion(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("bump token version: %w", err)
		}
		u.TokenVersion = tv
		pair, err = m.issue(ctx, u, domainauth.EventLogin)
		return err
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("user.id", u.ID))
	obs.WithTrace(ctx, m.log).Info("login", zap.Int64("user_id", u.ID), zap.Int64("token_version", u.TokenVersion))
	return pair, nil
}

// Refresh rotates a refresh token. The presented token is consumed whether or
// not the caller uses the new pair.
func (m *SessionManager) Refresh(ctx context.Context, raw string) (pair *domainauth.TokenPair, err error) {
	ctx, span := m.start(ctx, "refresh")
	defer func(start time.Time) { m.finish(span, "refresh", start, err) }(time.Now())

	if raw == "" {
		return nil, domainauth.ErrRefreshNotFound
	}
	hash := tokens.HashToken(raw)

	rec, err := m.tokens.FindByHash(ctx, hash)
	if errors.Is(err, domainauth.ErrTokenNotFound) {
		return nil, domainauth.ErrRefreshNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	if rec.Expired(m.cfg.Now()) {
		if _, err := m.tokens.DeleteByHash(ctx, hash); err != nil && !errors.Is(err, domainauth.ErrTokenNotFound) {
			obs.WithTrace(ctx, m.log).Warn("delete expired refresh token", zap.Int64("user_id", rec.UserID), zap.Error(err))
		}
		return nil, domainauth.ErrRefreshExpired
	}

	var uid int64
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		rec, err := m.tokens.DeleteByHash(ctx, hash)
		if errors.Is(err, domainauth.ErrTokenNotFound) {
			return domainauth.ErrRefreshNotFound
		}
		if err != nil {
			return fmt.Errorf("consume refresh token: %w", err)
		}
		u, err := m.users.GetByID(ctx, rec.UserID)
		if errors.Is(err, user.ErrNotFound) {
			return domainauth.ErrUnknownSubject
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		tv, err := m.users.IncrementTokenVersion(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("bump token version: %w", err)
		}
		u.TokenVersion = tv
		uid = u.ID
		pair, err = m.issue(ctx, u, domainauth.EventRefresh)
		return err
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("user.id", uid))
	obs.WithTrace(ctx, m.log).Debug("refresh", zap.Int64("user_id", uid))
	return pair, nil
}

// Logout ends the session owning raw. Unknown or empty tokens are a no-op.
func (m *SessionManager) Logout(ctx context.Context, raw string) (err error) {
	ctx, span := m.start(ctx, "logout")
	defer func(start time.Time) { m.finish(span, "logout", start, err) }(time.Now())

	if raw == "" {
		return nil
	}
	hash := tokens.HashToken(raw)

	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		rec, err := m.tokens.DeleteByHash(ctx, hash)
		if errors.Is(err, domainauth.ErrTokenNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("delete refresh token: %w", err)
		}
		u, err := m.users.GetByID(ctx, rec.UserID)
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		tv, err := m.users.IncrementTokenVersion(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("bump token version: %w", err)
		}
		span.SetAttributes(attribute.Int64("user.id", u.ID))
		return m.emit(ctx, domainauth.EventLogout, u, tv)
	})
	if err != nil {
		obs.WithTrace(ctx, m.log).Error("logout failed", zap.Error(err))
	}
	return err
}

// LogoutAll ends every session of userID and revokes its access tokens.
func (m *SessionManager) LogoutAll(ctx context.Context, userID int64) (err error) {
	ctx, span := m.start(ctx, "logout_all", attribute.Int64("user.id", userID))
	defer func(start time.Time) { m.finish(span, "logout_all", start, err) }(time.Now())

	var removed int64
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := m.users.GetByID(ctx, userID)
		if errors.Is(err, user.ErrNotFound) {
			return domainauth.ErrUnknownSubject
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if removed, err = m.tokens.DeleteAllForUser(ctx, userID); err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		tv, err := m.users.IncrementTokenVersion(ctx, userID)
		if err != nil {
			return fmt.Errorf("bump token version: %w", err)
		}
		return m.emit(ctx, domainauth.EventLogoutAll, u, tv)
	})
	if err != nil {
		return err
	}

	obs.WithTrace(ctx, m.log).Info("logout all", zap.Int64("user_id", userID), zap.Int64("sessions", removed))
	return nil
}

// issue persists a fresh refresh token for u, records the event and signs an
// access token carrying u.TokenVersion. Must run inside a transaction.
func (m *SessionManager) issue(ctx context.Context, u *user.User, kind domainauth.EventKind) (*domainauth.TokenPair, error) {
	now := m.cfg.Now()

	raw, err := tokens.GenerateRawToken(m.cfg.RefreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	rec := &domainauth.RefreshToken{
		UserID:    u.ID,
		TokenHash: tokens.HashToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.RefreshTTL),
	}
	if err := m.tokens.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}
	if err := m.emit(ctx, kind, u, u.TokenVersion); err != nil {
		return nil, err
	}

	access, exp, err := m.signer.Sign(u.ID, u.Username, u.Role, u.TokenVersion)
	if err != nil {
		return nil, err
	}
	return &domainauth.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  exp,
		RefreshToken:     raw,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

func (m *SessionManager) emit(ctx context.Context, kind domainauth.EventKind, u *user.User, tv int64) error {
	ev := domainauth.SessionEvent{
		Kind:         kind,
		UserID:       u.ID,
		Username:     u.Username,
		TokenVersion: tv,
		At:           m.cfg.Now(),
	}
	if err := m.events.Emit(ctx, ev); err != nil {
		return fmt.Errorf("emit %s event: %w", kind, err)
	}
	return nil
}

// equalizeTiming spends one hash verification so unknown usernames cost
// about as much as wrong passwords.
func (m *SessionManager) equalizeTiming(plain string) {
	m.dummyOnce.Do(func() {
		h, err := m.hasher.Hash(dummyPassword)
		if err != nil {
			m.log.Warn("dummy hash", zap.Error(err))
			return
		}
		m.dummyHash = h
	})
	if m.dummyHash != "" {
		_, _ = m.hasher.Verify(m.dummyHash, plain)
	}
}

func (m *SessionManager) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("auth.session").Start(ctx, "auth."+op, trace.WithAttributes(attrs...))
}

func (m *SessionManager) finish(span trace.Span, op string, start time.Time, err error) {
	result := resultOf(err)
	span.SetAttributes(attribute.String("auth.result", result))
	if result == "error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	mOps.WithLabelValues(op, result).Inc()
	mOpDur.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domainauth.ErrValidation):
		return "validation"
	case errors.Is(err, domainauth.ErrConflict):
		return "conflict"
	case errors.Is(err, domainauth.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domainauth.ErrUnauthorized):
		return domainauth.UnauthorizedReason(err)
	default:
		return "error"
	}
}
