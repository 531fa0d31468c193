package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ auth.RefreshTokenRepo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct{ db *DB }

func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

func (r *RefreshTokenRepo) Create(ctx context.Context, t *auth.RefreshToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m := refreshTokenModel{
		UserID:    t.UserID,
		TokenHash: t.TokenHash,
		CreatedAt: t.CreatedAt.UTC(),
		ExpiresAt: t.ExpiresAt.UTC(),
	}
	err := r.db.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token_hash", "created_at", "expires_at"}),
	}).Create(&m).Error
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrTokenConflict
		}
		return fmt.Errorf("save refresh token: %w", err)
	}
	t.ID = m.ID
	return nil
}

func (r *RefreshTokenRepo) FindByHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	var m refreshTokenModel
	if err := r.db.conn(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrTokenNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return m.toDomain(), nil
}

func (r *RefreshTokenRepo) DeleteByHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	var out *auth.RefreshToken
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		t, err := r.FindByHash(ctx, tokenHash)
		if err != nil {
			return err
		}
		res := r.db.conn(ctx).Where("id = ?", t.ID).Delete(&refreshTokenModel{})
		if res.Error != nil {
			return fmt.Errorf("delete refresh token: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return auth.ErrTokenNotFound
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RefreshTokenRepo) DeleteAllForUser(ctx context.Context, userID int64) (int64, error) {
	res := r.db.conn(ctx).Where("user_id = ?", userID).Delete(&refreshTokenModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete user refresh tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.conn(ctx).Where("expires_at < ?", now.UTC()).Delete(&refreshTokenModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
