package revocation

import (
	"context"
	"errors"
	"fmt"

	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/obs"
	"github.com/NordCoder/Gatekeeper/internal/obs/retry"
	kafkax "github.com/NordCoder/Gatekeeper/internal/repository/kafka"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

var mCommands = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "revocation_commands_total",
	Help: "Revocation commands consumed by result",
}, []string{"result"})

type Revoker interface {
	LogoutAll(ctx context.Context, userID int64) error
}

// Controller ends user sessions on commands read from the revocations topic.
type Controller struct {
	log    *zap.Logger
	sub    *kafkax.Consumer
	uc     Revoker
	policy retry.Policy
}

func NewController(log *zap.Logger, sub *kafkax.Consumer, uc Revoker, policy retry.Policy) *Controller {
	return &Controller{log: obs.Component(log, "revocation"), sub: sub, uc: uc, policy: policy}
}

func (c *Controller) Run(ctx context.Context) error {
	if err := c.sub.Consume(ctx, c.Handler()); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn("kafka consume", zap.Error(err))
		return err
	}
	return ctx.Err()
}

func (c *Controller) Handler() kafkax.Handler {
	return kafkax.ProtoHandler(
		func() *structpb.Struct { return &structpb.Struct{} },
		func(ctx context.Context, _ []byte, msg *structpb.Struct) error {
			return c.handle(ctx, msg)
		},
	)
}

func (c *Controller) handle(ctx context.Context, msg *structpb.Struct) error {
	log := obs.WithTrace(ctx, c.log)

	cmd, err := kafkax.RevocationCommandFromProto(msg)
	if err != nil {
		mCommands.WithLabelValues("malformed").Inc()
		log.Warn("revocation command dropped", zap.Error(err))
		return nil
	}

	err = retry.Do(ctx, func() error {
		err := c.uc.LogoutAll(ctx, cmd.UserID)
		if errors.Is(err, domainauth.ErrUnknownSubject) {
			return fmt.Errorf("%w: %w", retry.ErrPermanent, err)
		}
		return err
	}, c.policy)

	switch {
	case err == nil:
		mCommands.WithLabelValues("ok").Inc()
		log.Info("sessions revoked", zap.Int64("user_id", cmd.UserID), zap.String("reason", cmd.Reason))
		return nil
	case errors.Is(err, retry.ErrPermanent):
		mCommands.WithLabelValues("unknown_user").Inc()
		log.Warn("revocation for unknown user", zap.Int64("user_id", cmd.UserID))
		return nil
	default:
		mCommands.WithLabelValues("error").Inc()
		return fmt.Errorf("revoke sessions of user %d: %w", cmd.UserID, err)
	}
}
