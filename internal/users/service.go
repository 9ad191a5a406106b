// Package users manages user records outside the login flow.
package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/database/models"
	"github.com/hugh/go-magiclink/internal/store"
	"github.com/hugh/go-magiclink/internal/validation"
)

// ListLimit caps ListUsers.
const ListLimit = 100

type Service struct {
	store  store.UserStore
	logger *slog.Logger
}

func NewService(st store.UserStore, logger *slog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

func (s *Service) Create(ctx context.Context, email, name string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	name = validation.SanitizeString(name)
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, email, name)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user created", "user_id", user.ID)
	return user, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.store.FindUserByID(ctx, id)
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	return s.store.FindUserByEmail(ctx, email)
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx, ListLimit)
}

// Update applies the whitelisted fields in update.
func (s *Service) Update(ctx context.Context, id uuid.UUID, update store.UserUpdate) (*models.User, error) {
	if update.Email != nil {
		email := models.NormalizeEmail(*update.Email)
		if err := validation.ValidateEmail(email); err != nil {
			return nil, err
		}
		update.Email = &email
	}
	if update.Name != nil {
		name := validation.SanitizeString(*update.Name)
		if err := validation.ValidateName(name); err != nil {
			return nil, err
		}
		update.Name = &name
	}

	user, err := s.store.UpdateUser(ctx, id, update)
	if err != nil {
		return nil, fmt.Errorf("updating user %s: %w", id, err)
	}
	return user, nil
}
