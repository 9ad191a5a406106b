// Package store defines persistence for users and magic links.
//
// Implementations live in subpackages: memory for tests and single-process
// deployments, gormstore for PostgreSQL (SQLite in tests) and mongostore for
// MongoDB replica sets.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/database/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
	// ErrTokenUnavailable is returned when a magic link does not exist, was
	// already used, or has expired. Callers must not distinguish the cases.
	ErrTokenUnavailable = errors.New("magic link unavailable")
)

// UserUpdate carries the mutable user fields. Nil fields are left untouched.
type UserUpdate struct {
	Name            *string
	Email           *string
	IsEmailVerified *bool
	LastLogin       *time.Time
}

func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.IsEmailVerified == nil && u.LastLogin == nil
}

// UserStore persists user accounts. Emails are stored normalized and are
// unique; lookups by email normalize their argument.
type UserStore interface {
	CreateUser(ctx context.Context, email, name string) (*models.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdateUser applies the update and always refreshes UpdatedAt.
	UpdateUser(ctx context.Context, id uuid.UUID, update UserUpdate) (*models.User, error)
	// ListUsers returns at most limit users, newest first.
	ListUsers(ctx context.Context, limit int) ([]models.User, error)
}

// MagicLinkStore persists magic links.
type MagicLinkStore interface {
	CreateMagicLink(ctx context.Context, link *models.MagicLink) error
	// RedeemMagicLink atomically marks an unused, unexpired link as used and
	// records the login on its owner, returning the updated owner. Exactly one
	// of any number of concurrent callers for the same token succeeds.
	RedeemMagicLink(ctx context.Context, token string, now time.Time) (*models.User, error)
	// PurgeMagicLinks deletes links that expired before the cutoff.
	PurgeMagicLinks(ctx context.Context, expiredBefore time.Time) (int64, error)
}

type Store interface {
	UserStore
	MagicLinkStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// FindOrCreateUser returns the account for email, creating it when absent.
// A concurrent creation of the same email resolves to the winning record.
func FindOrCreateUser(ctx context.Context, s UserStore, email, name string) (*models.User, error) {
	email = models.NormalizeEmail(email)

	user, err := s.FindUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	user, err = s.CreateUser(ctx, email, name)
	if errors.Is(err, ErrConflict) {
		return s.FindUserByEmail(ctx, email)
	}
	return user, err
}
