package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/jackc/pgx/v5"
)

var _ auth.RefreshTokenRepo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct{ db *DB }

func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

const (
	// one row per user: a new token replaces the previous session
	qRTUpsert = `
INSERT INTO refresh_tokens (user_id, token_hash, created_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET token_hash = EXCLUDED.token_hash,
    created_at = EXCLUDED.created_at,
    expires_at = EXCLUDED.expires_at
RETURNING id;`

	qRTByHash = `
SELECT id, user_id, token_hash, created_at, expires_at
FROM refresh_tokens
WHERE token_hash = $1;`

	qRTDeleteByHash = `
DELETE FROM refresh_tokens
WHERE token_hash = $1
RETURNING id, user_id, token_hash, created_at, expires_at;`

	qRTDeleteForUser = `
DELETE FROM refresh_tokens WHERE user_id = $1;`

	qRTDeleteExpired = `
DELETE FROM refresh_tokens WHERE expires_at < $1;`
)

func (r *RefreshTokenRepo) Create(ctx context.Context, t *auth.RefreshToken) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	err := r.db.execQueryer(ctx).QueryRow(ctx, qRTUpsert, t.UserID, t.TokenHash, t.CreatedAt, t.ExpiresAt).Scan(&t.ID)
	if err != nil {
		if c, ok := uniqueViolation(err); ok && c == constraintTokenHash {
			return auth.ErrTokenConflict
		}
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) FindByHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	return scanRefreshToken(r.db.execQueryer(ctx).QueryRow(ctx, qRTByHash, tokenHash))
}

func (r *RefreshTokenRepo) DeleteByHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	return scanRefreshToken(r.db.execQueryer(ctx).QueryRow(ctx, qRTDeleteByHash, tokenHash))
}

func (r *RefreshTokenRepo) DeleteAllForUser(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTDeleteForUser, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTDeleteExpired, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRefreshToken(row pgx.Row) (*auth.RefreshToken, error) {
	var t auth.RefreshToken
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrTokenNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}
	return &t, nil
}
