// Package storetest holds behavioural tests shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/database/models"
	"github.com/hugh/go-magiclink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It registers its own cleanup.
type Factory func(t *testing.T) store.Store

// Run exercises the full store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore) })
	t.Run("UpdateUser", func(t *testing.T) { testUpdateUser(t, newStore) })
	t.Run("FindOrCreateUser", func(t *testing.T) { testFindOrCreate(t, newStore) })
	t.Run("MagicLinks", func(t *testing.T) { testMagicLinks(t, newStore) })
	t.Run("ConcurrentRedeem", func(t *testing.T) { testConcurrentRedeem(t, newStore) })
	t.Run("PurgeMagicLinks", func(t *testing.T) { testPurge(t, newStore) })
}

func newLink(userID uuid.UUID, expiresAt time.Time) *models.MagicLink {
	return &models.MagicLink{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     uuid.NewString(),
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
}

func testUsers(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("create_and_find", func(t *testing.T) {
		s := newStore(t)

		user, err := s.CreateUser(ctx, "  Alice@Example.COM ", "Alice")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.Equal(t, "Alice", user.Name)
		assert.False(t, user.IsEmailVerified)
		assert.Nil(t, user.LastLogin)
		assert.False(t, user.CreatedAt.IsZero())

		byID, err := s.FindUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, byID.Email)

		byEmail, err := s.FindUserByEmail(ctx, "ALICE@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)
	})

	t.Run("duplicate_email_conflicts", func(t *testing.T) {
		s := newStore(t)

		_, err := s.CreateUser(ctx, "bob@example.com", "")
		require.NoError(t, err)

		_, err = s.CreateUser(ctx, "BOB@example.com", "Other")
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("missing_user", func(t *testing.T) {
		s := newStore(t)

		_, err := s.FindUserByID(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.FindUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("list_respects_limit", func(t *testing.T) {
		s := newStore(t)

		for i := 0; i < 3; i++ {
			_, err := s.CreateUser(ctx, fmt.Sprintf("user%d@example.com", i), "")
			require.NoError(t, err)
		}

		users, err := s.ListUsers(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, users, 2)

		users, err = s.ListUsers(ctx, 100)
		require.NoError(t, err)
		assert.Len(t, users, 3)
	})
}

func testUpdateUser(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("applies_fields", func(t *testing.T) {
		s := newStore(t)
		user, err := s.CreateUser(ctx, "carol@example.com", "Carol")
		require.NoError(t, err)

		name := "Caroline"
		verified := true
		login := time.Now().UTC().Truncate(time.Millisecond)
		updated, err := s.UpdateUser(ctx, user.ID, store.UserUpdate{
			Name:            &name,
			IsEmailVerified: &verified,
			LastLogin:       &login,
		})
		require.NoError(t, err)
		assert.Equal(t, "Caroline", updated.Name)
		assert.Equal(t, "carol@example.com", updated.Email)
		assert.True(t, updated.IsEmailVerified)
		require.NotNil(t, updated.LastLogin)
		assert.WithinDuration(t, login, *updated.LastLogin, time.Millisecond)
		assert.False(t, updated.UpdatedAt.Before(user.UpdatedAt))
	})

	t.Run("empty_update_refreshes_timestamp", func(t *testing.T) {
		s := newStore(t)
		user, err := s.CreateUser(ctx, "dave@example.com", "Dave")
		require.NoError(t, err)

		updated, err := s.UpdateUser(ctx, user.ID, store.UserUpdate{})
		require.NoError(t, err)
		assert.Equal(t, "Dave", updated.Name)
		assert.False(t, updated.UpdatedAt.Before(user.UpdatedAt))
	})

	t.Run("email_is_normalized", func(t *testing.T) {
		s := newStore(t)
		user, err := s.CreateUser(ctx, "erin@example.com", "")
		require.NoError(t, err)

		email := " Erin.New@Example.com"
		updated, err := s.UpdateUser(ctx, user.ID, store.UserUpdate{Email: &email})
		require.NoError(t, err)
		assert.Equal(t, "erin.new@example.com", updated.Email)

		found, err := s.FindUserByEmail(ctx, "erin.new@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("email_conflict", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateUser(ctx, "frank@example.com", "")
		require.NoError(t, err)
		other, err := s.CreateUser(ctx, "grace@example.com", "")
		require.NoError(t, err)

		email := "frank@example.com"
		_, err = s.UpdateUser(ctx, other.ID, store.UserUpdate{Email: &email})
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("missing_user", func(t *testing.T) {
		s := newStore(t)
		name := "ghost"
		_, err := s.UpdateUser(ctx, uuid.New(), store.UserUpdate{Name: &name})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func testFindOrCreate(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)

	first, err := store.FindOrCreateUser(ctx, s, "Heidi@Example.com", "Heidi")
	require.NoError(t, err)

	second, err := store.FindOrCreateUser(ctx, s, "heidi@example.com", "Ignored")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Heidi", second.Name)
}

func testMagicLinks(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("redeem_once", func(t *testing.T) {
		s := newStore(t)
		user, err := s.CreateUser(ctx, "ivan@example.com", "")
		require.NoError(t, err)

		now := time.Now().UTC()
		link := newLink(user.ID, now.Add(15*time.Minute))
		require.NoError(t, s.CreateMagicLink(ctx, link))

		redeemed, err := s.RedeemMagicLink(ctx, link.Token, now)
		require.NoError(t, err)
		assert.Equal(t, user.ID, redeemed.ID)
		assert.True(t, redeemed.IsEmailVerified)
		require.NotNil(t, redeemed.LastLogin)
		assert.WithinDuration(t, now, *redeemed.LastLogin, time.Millisecond)

		_, err = s.RedeemMagicLink(ctx, link.Token, now)
		assert.ErrorIs(t, err, store.ErrTokenUnavailable)
	})

	t.Run("expired", func(t *testing.T) {
		s := newStore(t)
		user, err := s.CreateUser(ctx, "judy@example.com", "")
		require.NoError(t, err)

		now := time.Now().UTC()
		link := newLink(user.ID, now.Add(15*time.Minute))
		require.NoError(t, s.CreateMagicLink(ctx, link))

		_, err = s.RedeemMagicLink(ctx, link.Token, now.Add(16*time.Minute))
		assert.ErrorIs(t, err, store.ErrTokenUnavailable)

		found, err := s.FindUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, found.IsEmailVerified)
	})

	t.Run("unknown_token", func(t *testing.T) {
		s := newStore(t)
		_, err := s.RedeemMagicLink(ctx, "does-not-exist", time.Now().UTC())
		assert.ErrorIs(t, err, store.ErrTokenUnavailable)
	})

	t.Run("duplicate_token", func(t *testing.T) {
		s := newStore(t)
		user, err := s.CreateUser(ctx, "kim@example.com", "")
		require.NoError(t, err)

		link := newLink(user.ID, time.Now().Add(time.Minute))
		require.NoError(t, s.CreateMagicLink(ctx, link))

		dup := newLink(user.ID, time.Now().Add(time.Minute))
		dup.Token = link.Token
		assert.ErrorIs(t, s.CreateMagicLink(ctx, dup), store.ErrConflict)
	})

	t.Run("older_links_stay_valid", func(t *testing.T) {
		s := newStore(t)
		user, err := s.CreateUser(ctx, "leo@example.com", "")
		require.NoError(t, err)

		now := time.Now().UTC()
		older := newLink(user.ID, now.Add(15*time.Minute))
		newer := newLink(user.ID, now.Add(15*time.Minute))
		require.NoError(t, s.CreateMagicLink(ctx, older))
		require.NoError(t, s.CreateMagicLink(ctx, newer))

		_, err = s.RedeemMagicLink(ctx, newer.Token, now)
		require.NoError(t, err)
		_, err = s.RedeemMagicLink(ctx, older.Token, now)
		require.NoError(t, err)
	})
}

func testConcurrentRedeem(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)

	user, err := s.CreateUser(ctx, "mallory@example.com", "")
	require.NoError(t, err)

	now := time.Now().UTC()
	link := newLink(user.ID, now.Add(15*time.Minute))
	require.NoError(t, s.CreateMagicLink(ctx, link))

	const workers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		failures  atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RedeemMagicLink(ctx, link.Token, now)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, store.ErrTokenUnavailable):
				failures.Add(1)
			default:
				t.Errorf("unexpected redeem error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), failures.Load())
}

func testPurge(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)

	user, err := s.CreateUser(ctx, "nia@example.com", "")
	require.NoError(t, err)

	now := time.Now().UTC()
	stale := newLink(user.ID, now.Add(-48*time.Hour))
	fresh := newLink(user.ID, now.Add(15*time.Minute))
	require.NoError(t, s.CreateMagicLink(ctx, stale))
	require.NoError(t, s.CreateMagicLink(ctx, fresh))

	purged, err := s.PurgeMagicLinks(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = s.RedeemMagicLink(ctx, fresh.Token, now)
	assert.NoError(t, err)
}
