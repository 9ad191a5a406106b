// Package gormstore implements store.Store on top of gorm. PostgreSQL is the
// production dialect; tests run against SQLite.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/database/models"
	"github.com/hugh/go-magiclink/internal/store"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ store.Store = (*Store)(nil)

// DB exposes the underlying handle for migrations and health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) CreateUser(ctx context.Context, email, name string) (*models.User, error) {
	user := models.User{
		Email: models.NormalizeEmail(email),
		Name:  name,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, update store.UserUpdate) (*models.User, error) {
	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if update.Name != nil {
		updates["name"] = *update.Name
	}
	if update.Email != nil {
		updates["email"] = models.NormalizeEmail(*update.Email)
	}
	if update.IsEmailVerified != nil {
		updates["is_email_verified"] = *update.IsEmailVerified
	}
	if update.LastLogin != nil {
		updates["last_login"] = update.LastLogin.UTC()
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, store.ErrNotFound
	}

	return s.FindUserByID(ctx, id)
}

func (s *Store) ListUsers(ctx context.Context, limit int) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (s *Store) CreateMagicLink(ctx context.Context, link *models.MagicLink) error {
	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) RedeemMagicLink(ctx context.Context, token string, now time.Time) (*models.User, error) {
	now = now.UTC()

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The conditional update is the single point of arbitration between
		// concurrent redeemers.
		claimed := tx.Model(&models.MagicLink{}).
			Where("token = ? AND used = ? AND expires_at > ?", token, false, now).
			Updates(map[string]interface{}{"used": true, "used_at": now})
		if claimed.Error != nil {
			return claimed.Error
		}
		if claimed.RowsAffected == 0 {
			return store.ErrTokenUnavailable
		}

		var link models.MagicLink
		if err := tx.Where("token = ?", token).First(&link).Error; err != nil {
			return err
		}

		verified := tx.Model(&models.User{}).Where("id = ?", link.UserID).Updates(map[string]interface{}{
			"is_email_verified": true,
			"last_login":        now,
			"updated_at":        now,
		})
		if verified.Error != nil {
			return verified.Error
		}
		if verified.RowsAffected == 0 {
			return store.ErrNotFound
		}

		return tx.Where("id = ?", link.UserID).First(&user).Error
	})
	if err != nil {
		return nil, translate(err)
	}

	return &user, nil
}

func (s *Store) PurgeMagicLinks(ctx context.Context, expiredBefore time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at < ?", expiredBefore.UTC()).Delete(&models.MagicLink{})
	if result.Error != nil {
		return 0, fmt.Errorf("purging magic links: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrTokenUnavailable):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return store.ErrConflict
	default:
		return err
	}
}

// isUniqueViolation covers drivers opened without TranslateError.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
