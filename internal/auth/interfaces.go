package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/database/models"
	"github.com/hugh/go-magiclink/internal/magiclink"
)

// Authenticator defines the magic-link login operations.
type Authenticator interface {
	RequestMagicLink(ctx context.Context, identity magiclink.Identity) (*magiclink.Issued, error)
	VerifyMagicLink(ctx context.Context, token string) (*AuthResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenService defines the session credential operations.
type TokenService interface {
	GenerateToken(userID uuid.UUID, email string) (string, error)
	Verify(credential string) (*Claims, error)
	Expiry() time.Duration
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator = (*Service)(nil)
	_ TokenService  = (*SessionService)(nil)
)
