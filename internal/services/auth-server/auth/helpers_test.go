package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	tokens "github.com/NordCoder/Gatekeeper/internal/auth"
	"github.com/NordCoder/Gatekeeper/internal/auth/authtest"
	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/repository/memory"
	"github.com/NordCoder/Gatekeeper/internal/security/password"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []domainauth.SessionEvent
}

func (r *recordedEvents) Emit(_ context.Context, ev domainauth.SessionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordedEvents) kinds() []domainauth.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domainauth.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	store  *memory.Store
	clock  *testClock
	events *recordedEvents
	sm     *SessionManager
	guard  *Guard
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key := authtest.Key(t)
	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.New()
	events := &recordedEvents{}
	log := zaptest.NewLogger(t)

	hasher, err := password.New(password.Config{Algorithm: password.AlgBcrypt, BcryptCost: 4})
	require.NoError(t, err)

	signer := tokens.NewSigner(key, tokens.SignerConfig{Issuer: "gatekeeper", TTL: 5 * time.Minute, Now: clock.Now})
	verifier := tokens.NewVerifier(&key.PublicKey, tokens.VerifierConfig{Issuer: "gatekeeper", Now: clock.Now})

	sm := NewSessionManager(store, store.RefreshTokens(), store, hasher, signer, events, Config{
		RefreshTTL: 7 * 24 * time.Hour,
		Now:        clock.Now,
	}, log)

	return &fixture{
		store:  store,
		clock:  clock,
		events: events,
		sm:     sm,
		guard:  NewGuard(verifier, store, log),
	}
}

func (f *fixture) registerAndLogin(t *testing.T, username, role string) (int64, *domainauth.TokenPair) {
	t.Helper()
	ctx := context.Background()
	id, err := f.sm.Register(ctx, username, "s3cret-"+username, role)
	require.NoError(t, err)
	pair, err := f.sm.Login(ctx, username, "s3cret-"+username)
	require.NoError(t, err)
	return id, pair
}
