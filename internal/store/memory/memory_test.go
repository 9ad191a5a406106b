package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/database/models"
	"github.com/hugh/go-magiclink/internal/store"
	"github.com/hugh/go-magiclink/internal/store/memory"
	"github.com/hugh/go-magiclink/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return memory.New()
	})
}

func TestRedeemOrphanedLink(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	now := time.Now().UTC()
	link := &models.MagicLink{
		UserID:    uuid.New(),
		Token:     "orphan",
		ExpiresAt: now.Add(time.Minute),
	}
	require.NoError(t, s.CreateMagicLink(ctx, link))

	_, err := s.RedeemMagicLink(ctx, "orphan", now)
	assert.ErrorIs(t, err, store.ErrNotFound)

	stored, ok := s.MagicLink("orphan")
	require.True(t, ok)
	assert.False(t, stored.Used, "failed redemption must not consume the link")
}

func TestRedeemRecordsUsage(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	user, err := s.CreateUser(ctx, "olivia@example.com", "")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, s.CreateMagicLink(ctx, &models.MagicLink{
		UserID:    user.ID,
		Token:     "tok",
		ExpiresAt: now.Add(time.Minute),
	}))

	_, err = s.RedeemMagicLink(ctx, "tok", now)
	require.NoError(t, err)

	stored, ok := s.MagicLink("tok")
	require.True(t, ok)
	assert.True(t, stored.Used)
	require.NotNil(t, stored.UsedAt)
	assert.Equal(t, now, *stored.UsedAt)
}

func TestReturnedUsersAreCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	user, err := s.CreateUser(ctx, "pat@example.com", "Pat")
	require.NoError(t, err)
	user.Name = "mutated"

	found, err := s.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pat", found.Name)
}
