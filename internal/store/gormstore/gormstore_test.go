package gormstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/database/models"
	"github.com/hugh/go-magiclink/internal/store"
	"github.com/hugh/go-magiclink/internal/store/gormstore"
	"github.com/hugh/go-magiclink/internal/store/storetest"
	"github.com/hugh/go-magiclink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return gormstore.New(testutil.SetupTestDB(t))
	})
}

func TestRedeemMarksLinkUsed(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	s := gormstore.New(db)

	user, err := s.CreateUser(ctx, "quinn@example.com", "")
	require.NoError(t, err)

	now := time.Now().UTC()
	link := &models.MagicLink{UserID: user.ID, Token: "tok-used", ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, s.CreateMagicLink(ctx, link))

	_, err = s.RedeemMagicLink(ctx, "tok-used", now)
	require.NoError(t, err)

	var stored models.MagicLink
	require.NoError(t, db.Where("token = ?", "tok-used").First(&stored).Error)
	assert.True(t, stored.Used)
	require.NotNil(t, stored.UsedAt)
	assert.WithinDuration(t, now, *stored.UsedAt, time.Millisecond)
}

func TestRedeemOrphanedLinkRollsBack(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	s := gormstore.New(db)

	now := time.Now().UTC()
	link := &models.MagicLink{UserID: uuid.New(), Token: "orphan", ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, s.CreateMagicLink(ctx, link))

	_, err := s.RedeemMagicLink(ctx, "orphan", now)
	assert.ErrorIs(t, err, store.ErrNotFound)

	var stored models.MagicLink
	require.NoError(t, db.Where("token = ?", "orphan").First(&stored).Error)
	assert.False(t, stored.Used)
}

func TestPing(t *testing.T) {
	s := gormstore.New(testutil.SetupTestDB(t))
	assert.NoError(t, s.Ping(context.Background()))
}
