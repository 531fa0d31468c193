// Package memory is an in-process credential store for tests and single-node
// development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/domain/user"
)

var (
	_ user.Repo             = (*Store)(nil)
	_ auth.Transactor       = (*Store)(nil)
	_ auth.RefreshTokenRepo = tokenRepo{}
)

type Store struct {
	mu          sync.Mutex
	nextUserID  int64
	nextTokenID int64
	users       map[int64]user.User
	byUsername  map[string]int64
	tokens      map[string]auth.RefreshToken
	tokenOfUser map[int64]string

	txMu sync.Mutex
	now  func() time.Time
}

func New() *Store {
	return &Store{
		users:       make(map[int64]user.User),
		byUsername:  make(map[string]int64),
		tokens:      make(map[string]auth.RefreshToken),
		tokenOfUser: make(map[int64]string),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type txKey struct{}

// WithTx serializes fn against other transactions. Nested calls reuse the
// outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func (s *Store) Create(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[u.Username]; ok {
		return user.ErrUsernameTaken
	}
	s.nextUserID++
	now := s.now()
	u.ID = s.nextUserID
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = *u
	s.byUsername[u.Username] = u.ID
	return nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, user.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) IncrementTokenVersion(ctx context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return 0, user.ErrNotFound
	}
	u.TokenVersion++
	u.UpdatedAt = s.now()
	s.users[id] = u
	return u.TokenVersion, nil
}

// RefreshTokens exposes the token half of the store under the
// auth.RefreshTokenRepo method names that collide with user.Repo.
func (s *Store) RefreshTokens() auth.RefreshTokenRepo { return tokenRepo{s} }

type tokenRepo struct{ s *Store }

func (r tokenRepo) Create(ctx context.Context, t *auth.RefreshToken) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.tokens[t.TokenHash]; taken {
		return auth.ErrTokenConflict
	}
	if old, ok := s.tokenOfUser[t.UserID]; ok {
		delete(s.tokens, old)
	}
	s.nextTokenID++
	t.ID = s.nextTokenID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	s.tokens[t.TokenHash] = *t
	s.tokenOfUser[t.UserID] = t.TokenHash
	return nil
}

func (r tokenRepo) FindByHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[tokenHash]
	if !ok {
		return nil, auth.ErrTokenNotFound
	}
	return &t, nil
}

func (r tokenRepo) DeleteByHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[tokenHash]
	if !ok {
		return nil, auth.ErrTokenNotFound
	}
	s.removeLocked(t)
	return &t, nil
}

func (r tokenRepo) DeleteAllForUser(ctx context.Context, userID int64) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, ok := s.tokenOfUser[userID]
	if !ok {
		return 0, nil
	}
	s.removeLocked(s.tokens[hash])
	return 1, nil
}

func (r tokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, t := range s.tokens {
		if t.Expired(now) {
			s.removeLocked(t)
			n++
		}
	}
	return n, nil
}

func (s *Store) removeLocked(t auth.RefreshToken) {
	delete(s.tokens, t.TokenHash)
	if s.tokenOfUser[t.UserID] == t.TokenHash {
		delete(s.tokenOfUser, t.UserID)
	}
}
