package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tokens "github.com/NordCoder/Gatekeeper/internal/auth"
	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	"github.com/NordCoder/Gatekeeper/internal/obs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var mRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "auth_guard_rejections_total",
	Help: "Access tokens rejected by the guard",
}, []string{"reason"})

type TokenVerifier interface {
	Verify(token string) (*tokens.AccessClaims, error)
}

// Guard resolves bearer access tokens to identities. It needs only the public
// key and the user store.
type Guard struct {
	verifier TokenVerifier
	users    user.Repo
	log      *zap.Logger
}

func NewGuard(verifier TokenVerifier, users user.Repo, log *zap.Logger) *Guard {
	return &Guard{verifier: verifier, users: users, log: obs.Component(log, "guard")}
}

func (g *Guard) Authenticate(ctx context.Context, bearer string) (domainauth.Identity, error) {
	ctx, span := otel.Tracer("auth.guard").Start(ctx, "auth.authenticate")
	defer span.End()

	id, err := g.authenticate(ctx, bearer)
	if err != nil {
		reason := domainauth.UnauthorizedReason(err)
		if reason == "" {
			span.RecordError(err)
			reason = "error"
		}
		span.SetAttributes(attribute.String("auth.reject_reason", reason))
		mRejected.WithLabelValues(reason).Inc()
		obs.WithTrace(ctx, g.log).Debug("access rejected", zap.String("reason", reason))
		return domainauth.Identity{}, err
	}
	span.SetAttributes(attribute.Int64("user.id", id.ID))
	return id, nil
}

func (g *Guard) authenticate(ctx context.Context, bearer string) (domainauth.Identity, error) {
	claims, err := g.verifier.Verify(bearer)
	if err != nil {
		return domainauth.Identity{}, err
	}
	uid, err := claims.UserID()
	if err != nil {
		return domainauth.Identity{}, domainauth.ErrMalformed
	}

	u, err := g.users.GetByID(ctx, uid)
	if errors.Is(err, user.ErrNotFound) {
		return domainauth.Identity{}, domainauth.ErrUnknownSubject
	}
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("get user: %w", err)
	}
	if claims.TokenVersion != u.TokenVersion {
		return domainauth.Identity{}, domainauth.ErrRevoked
	}
	return domainauth.Identity{ID: u.ID, Username: u.Username, Role: u.Role}, nil
}

// BearerToken extracts the token from an Authorization header value. It
// returns "" when the header does not use the Bearer scheme.
func BearerToken(header string) string {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
