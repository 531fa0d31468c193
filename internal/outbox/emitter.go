package outbox

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/domain/outbox"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var _ domainauth.SessionEvents = (*Emitter)(nil)

// Emitter records session events in the outbox. Called inside a store
// transaction, the event commits or rolls back together with the session
// change.
type Emitter struct {
	repo outbox.Repository
}

func NewEmitter(repo outbox.Repository) *Emitter { return &Emitter{repo: repo} }

func (e *Emitter) Emit(ctx context.Context, ev domainauth.SessionEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal session event: %w", err)
	}
	key, err := ulid.New(ulid.Timestamp(ev.At), rand.Reader)
	if err != nil {
		return fmt.Errorf("outbox key: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return e.repo.Enqueue(ctx, outbox.Message{
		IdempotencyKey: key.String(),
		Kind:           outbox.KindSessionEvent,
		Data:           data,
		Traceparent:    carrier.Get("traceparent"),
		Tracestate:     carrier.Get("tracestate"),
		Baggage:        carrier.Get("baggage"),
	})
}
