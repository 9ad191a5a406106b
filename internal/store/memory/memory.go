// Package memory is an in-process store backed by maps.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/database/models"
	"github.com/hugh/go-magiclink/internal/store"
)

type Store struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]*models.User
	byEmail map[string]uuid.UUID
	links   map[string]*models.MagicLink
	now     func() time.Time
}

func New() *Store {
	return &Store{
		users:   make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]uuid.UUID),
		links:   make(map[string]*models.MagicLink),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) CreateUser(ctx context.Context, email, name string) (*models.User, error) {
	email = models.NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return nil, store.ErrConflict
	}

	now := s.now()
	user := &models.User{
		Base:  models.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Email: email,
		Name:  name,
	}
	s.users[user.ID] = user
	s.byEmail[email] = user.ID

	return user.Clone(), nil
}

func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return user.Clone(), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.users[id].Clone(), nil
}

func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, update store.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	if update.Email != nil {
		email := models.NormalizeEmail(*update.Email)
		if owner, taken := s.byEmail[email]; taken && owner != id {
			return nil, store.ErrConflict
		}
		delete(s.byEmail, user.Email)
		s.byEmail[email] = id
		user.Email = email
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.IsEmailVerified != nil {
		user.IsEmailVerified = *update.IsEmailVerified
	}
	if update.LastLogin != nil {
		t := *update.LastLogin
		user.LastLogin = &t
	}
	user.UpdatedAt = s.now()

	return user.Clone(), nil
}

func (s *Store) ListUsers(ctx context.Context, limit int) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u.Clone())
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})

	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (s *Store) CreateMagicLink(ctx context.Context, link *models.MagicLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.Token]; exists {
		return store.ErrConflict
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = s.now()
	}
	s.links[link.Token] = link.Clone()
	return nil
}

func (s *Store) RedeemMagicLink(ctx context.Context, token string, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[token]
	if !ok || !link.Redeemable(now) {
		return nil, store.ErrTokenUnavailable
	}

	// Check the owner before consuming so a failure leaves the link intact.
	user, ok := s.users[link.UserID]
	if !ok {
		return nil, store.ErrNotFound
	}

	usedAt := now
	link.Used = true
	link.UsedAt = &usedAt

	lastLogin := now
	user.IsEmailVerified = true
	user.LastLogin = &lastLogin
	user.UpdatedAt = now

	return user.Clone(), nil
}

func (s *Store) PurgeMagicLinks(ctx context.Context, expiredBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for token, link := range s.links {
		if link.ExpiresAt.Before(expiredBefore) {
			delete(s.links, token)
			purged++
		}
	}
	return purged, nil
}

// MagicLink returns a copy of the stored link for token.
func (s *Store) MagicLink(token string) (*models.MagicLink, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[token]
	return link.Clone(), ok
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}
