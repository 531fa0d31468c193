// Package bootstrap wires configuration into stores and services shared by the
// server and the admin CLI.
package bootstrap

import (
	"context"
	"fmt"

	tokens "github.com/NordCoder/Gatekeeper/internal/auth"
	config "github.com/NordCoder/Gatekeeper/internal/config/auth-server"
	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/domain/outbox"
	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	"github.com/NordCoder/Gatekeeper/internal/repository/memory"
	pg "github.com/NordCoder/Gatekeeper/internal/repository/postgres"
	"github.com/NordCoder/Gatekeeper/internal/repository/sqlite"
	"github.com/NordCoder/Gatekeeper/internal/security/password"
	authsvc "github.com/NordCoder/Gatekeeper/internal/services/auth-server/auth"

	"go.uber.org/zap"
)

type Store struct {
	Driver string
	Users  user.Repo
	Tokens domainauth.RefreshTokenRepo
	Tx     domainauth.Transactor
	// Outbox is nil unless the driver can enqueue events in the same
	// transaction as the session change.
	Outbox outbox.Repository
	Ping   func(ctx context.Context) error
	Close  func()
}

func OpenStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := pg.NewDB(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return &Store{
			Driver: config.DriverPostgres,
			Users:  pg.NewUserRepo(db),
			Tokens: pg.NewRefreshTokenRepo(db),
			Tx:     pg.NewTransactor(db, log),
			Outbox: pg.NewOutboxRepo(db),
			Ping:   db.Ping,
			Close:  db.Close,
		}, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Storage.SQLite)
		if err != nil {
			return nil, err
		}
		return &Store{
			Driver: config.DriverSQLite,
			Users:  sqlite.NewUserRepo(db),
			Tokens: sqlite.NewRefreshTokenRepo(db),
			Tx:     db,
			Ping:   db.Ping,
			Close: func() {
				if err := db.Close(); err != nil {
					log.Warn("close sqlite", zap.Error(err))
				}
			},
		}, nil
	case config.DriverMemory:
		st := memory.New()
		return &Store{
			Driver: config.DriverMemory,
			Users:  st,
			Tokens: st.RefreshTokens(),
			Tx:     st,
			Ping:   func(context.Context) error { return nil },
			Close:  func() {},
		}, nil
	default:
		return nil, config.ErrConfig(fmt.Sprintf("unknown storage.driver %q", cfg.Storage.Driver))
	}
}

// Keys loads the signing key pair. signer is nil when only a public key is
// configured, which is enough for the guard.
func Keys(cfg *config.Config) (*tokens.Signer, *tokens.Verifier, error) {
	a := cfg.Auth
	verifierCfg := tokens.VerifierConfig{Issuer: a.Issuer, Leeway: a.ClockSkew}

	if a.PrivateKey == "" && a.PrivateKeyPath == "" {
		pub, err := tokens.LoadPublicKey(a.PublicKeySource())
		if err != nil {
			return nil, nil, err
		}
		return nil, tokens.NewVerifier(pub, verifierCfg), nil
	}

	priv, pub, err := tokens.LoadKeyPair(a.PrivateKeySource(), a.PublicKeySource())
	if err != nil {
		return nil, nil, err
	}
	signer := tokens.NewSigner(priv, tokens.SignerConfig{Issuer: a.Issuer, TTL: a.AccessTTL})
	return signer, tokens.NewVerifier(pub, verifierCfg), nil
}

func SessionManager(cfg *config.Config, st *Store, signer *tokens.Signer, events domainauth.SessionEvents, log *zap.Logger) (*authsvc.SessionManager, error) {
	if signer == nil {
		return nil, config.ErrConfig("auth.private_key or auth.private_key_path is required to issue sessions")
	}
	hasher, err := password.New(cfg.Auth.Password.AsHasherConfig())
	if err != nil {
		return nil, err
	}
	return authsvc.NewSessionManager(st.Users, st.Tokens, st.Tx, hasher, signer, events, authsvc.Config{
		RefreshTTL:        cfg.Auth.RefreshTTL,
		RefreshTokenBytes: cfg.Auth.RefreshTokenBytes,
		Roles:             cfg.Auth.Roles,
	}, log), nil
}
