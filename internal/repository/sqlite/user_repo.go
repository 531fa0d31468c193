package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	"gorm.io/gorm"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct{ db *DB }

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	m := userModel{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		TokenVersion: u.TokenVersion,
	}
	if err := r.db.conn(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return user.ErrUsernameTaken
		}
		return fmt.Errorf("user insert: %w", err)
	}
	u.ID, u.CreatedAt, u.UpdatedAt = m.ID, m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *UserRepo) first(ctx context.Context, query string, arg any) (*user.User, error) {
	var m userModel
	if err := r.db.conn(ctx).Where(query, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return m.toDomain(), nil
}

func (r *UserRepo) IncrementTokenVersion(ctx context.Context, id int64) (int64, error) {
	var v int64
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		res := r.db.conn(ctx).Model(&userModel{}).Where("id = ?", id).UpdateColumns(map[string]any{
			"token_version": gorm.Expr("token_version + ?", 1),
			"updated_at":    time.Now().UTC(),
		})
		if res.Error != nil {
			return fmt.Errorf("bump token version: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return user.ErrNotFound
		}
		var m userModel
		if err := r.db.conn(ctx).Select("token_version").Where("id = ?", id).Take(&m).Error; err != nil {
			return fmt.Errorf("read token version: %w", err)
		}
		v = m.TokenVersion
		return nil
	})
	if err != nil {
		return 0, err
	}
	return v, nil
}
