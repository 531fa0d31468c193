package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	"github.com/jackc/pgx/v5"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const (
	qUserInsert = `
INSERT INTO users (username, password_hash, role)
VALUES ($1, $2, $3)
RETURNING id, token_version, created_at, updated_at;`

	qUserByID = `
SELECT id, username, password_hash, role, token_version, created_at, updated_at
FROM users
WHERE id = $1;`

	qUserByUsername = `
SELECT id, username, password_hash, role, token_version, created_at, updated_at
FROM users
WHERE username = $1;`

	qUserBumpVersion = `
UPDATE users
SET token_version = token_version + 1,
    updated_at    = NOW()
WHERE id = $1
RETURNING token_version;`
)

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).QueryRow(ctx, qUserInsert, u.Username, u.PasswordHash, u.Role).
		Scan(&u.ID, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if c, ok := uniqueViolation(err); ok && c == constraintUsername {
			return user.ErrUsernameTaken
		}
		return fmt.Errorf("user insert: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserByID, id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserByUsername, username), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) IncrementTokenVersion(ctx context.Context, id int64) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var v int64
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qUserBumpVersion, id).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, user.ErrNotFound
		}
		return 0, fmt.Errorf("bump token version: %w", err)
	}
	return v, nil
}

func scanUser(row pgx.Row, out *user.User) error {
	err := row.Scan(&out.ID, &out.Username, &out.PasswordHash, &out.Role, &out.TokenVersion, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.ErrNotFound
		}
		return fmt.Errorf("scan user: %w", err)
	}
	return nil
}
