package sweeper

import (
	"context"
	"fmt"
	"time"

	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Usecase struct {
	Tokens domainauth.RefreshTokenRepo
	Now    func() time.Time
}

func NewUC(tokens domainauth.RefreshTokenRepo, now func() time.Time) *Usecase {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Usecase{Tokens: tokens, Now: now}
}

// Sweep removes refresh tokens whose expiry has passed and reports how many
// were deleted.
func (u *Usecase) Sweep(ctx context.Context) (int64, error) {
	now := u.Now()
	ctx, span := otel.Tracer("sweeper.uc").Start(ctx, "sweeper.sweep",
		trace.WithAttributes(attribute.String("sweep.cutoff", now.Format(time.RFC3339))),
	)
	defer span.End()

	n, err := u.Tokens.DeleteExpired(ctx, now)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	span.SetAttributes(attribute.Int64("sweep.deleted", n))
	return n, nil
}
