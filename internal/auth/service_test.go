package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/auth"
	"github.com/hugh/go-magiclink/internal/magiclink"
	"github.com/hugh/go-magiclink/internal/store"
	"github.com/hugh/go-magiclink/internal/store/memory"
	"github.com/hugh/go-magiclink/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) (*auth.Service, *auth.SessionService, *memory.Store) {
	t.Helper()
	st := memory.New()
	logger := util.DiscardLogger()
	sessions := newSessionService(t, "service-secret")

	svc := auth.NewService(
		st,
		magiclink.NewIssuer(st, nil, "http://localhost:8080", logger),
		magiclink.NewVerifier(st, logger),
		sessions,
	)
	return svc, sessions, st
}

func TestService_MagicLinkLogin(t *testing.T) {
	ctx := context.Background()
	svc, sessions, _ := newAuthService(t)

	issued, err := svc.RequestMagicLink(ctx, magiclink.Identity{Email: "Login@Example.com", Name: "Login"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(magiclink.TokenTTL), issued.ExpiresAt, 5*time.Second)

	resp, err := svc.VerifyMagicLink(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "login@example.com", resp.User.Email)
	assert.True(t, resp.User.IsEmailVerified)
	assert.NotNil(t, resp.User.LastLogin)

	claims, err := sessions.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "login@example.com", claims.Email)

	_, err = svc.VerifyMagicLink(ctx, issued.Token)
	assert.ErrorIs(t, err, magiclink.ErrInvalidOrExpired)
}

func TestService_GetUserByID(t *testing.T) {
	ctx := context.Background()
	svc, _, st := newAuthService(t)

	user, err := st.CreateUser(ctx, "me@example.com", "Me")
	require.NoError(t, err)

	found, err := svc.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Me", found.Name)

	_, err = svc.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
