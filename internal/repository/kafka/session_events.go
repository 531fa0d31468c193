package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"google.golang.org/protobuf/types/known/structpb"
)

// SessionEventsKafka publishes session lifecycle events as
// google.protobuf.Struct messages keyed by user ID.
type SessionEventsKafka struct {
	p *Producer
}

func NewSessionEventsKafka(p *Producer) *SessionEventsKafka { return &SessionEventsKafka{p: p} }

func (e *SessionEventsKafka) PublishSessionEvent(ctx context.Context, ev domainauth.SessionEvent) error {
	msg, err := SessionEventToProto(ev)
	if err != nil {
		return err
	}
	return e.p.PublishProto(ctx, KeyFromInt64(ev.UserID), msg)
}

func SessionEventToProto(ev domainauth.SessionEvent) (*structpb.Struct, error) {
	msg, err := structpb.NewStruct(map[string]any{
		"kind":          string(ev.Kind),
		"user_id":       float64(ev.UserID),
		"username":      ev.Username,
		"token_version": float64(ev.TokenVersion),
		"at":            ev.At.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("encode session event: %w", err)
	}
	return msg, nil
}

func SessionEventFromProto(msg *structpb.Struct) (domainauth.SessionEvent, error) {
	f := msg.GetFields()
	at, err := time.Parse(time.RFC3339Nano, f["at"].GetStringValue())
	if err != nil {
		return domainauth.SessionEvent{}, fmt.Errorf("decode session event time: %w", err)
	}
	return domainauth.SessionEvent{
		Kind:         domainauth.EventKind(f["kind"].GetStringValue()),
		UserID:       int64(f["user_id"].GetNumberValue()),
		Username:     f["username"].GetStringValue(),
		TokenVersion: int64(f["token_version"].GetNumberValue()),
		At:           at,
	}, nil
}

var ErrBadCommand = errors.New("malformed revocation command")

// RevocationCommand asks the service to end every session of a user.
type RevocationCommand struct {
	UserID int64
	Reason string
}

func RevocationCommandToProto(c RevocationCommand) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"user_id": float64(c.UserID),
		"reason":  c.Reason,
	})
}

func RevocationCommandFromProto(msg *structpb.Struct) (RevocationCommand, error) {
	f := msg.GetFields()
	v, ok := f["user_id"]
	if !ok {
		return RevocationCommand{}, ErrBadCommand
	}
	id := int64(v.GetNumberValue())
	if id <= 0 || float64(id) != v.GetNumberValue() {
		return RevocationCommand{}, ErrBadCommand
	}
	return RevocationCommand{UserID: id, Reason: f["reason"].GetStringValue()}, nil
}
