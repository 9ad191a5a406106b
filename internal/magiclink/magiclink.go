// Package magiclink issues and redeems single-use login tokens.
package magiclink

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/validation"
)

const (
	// TokenTTL is fixed; callers cannot request a different lifetime.
	TokenTTL = 15 * time.Minute

	tokenBytes = 32

	// VerifyPath is where the emailed link points.
	VerifyPath = "/auth/verify"
)

var (
	ErrValidation       = validation.ErrInvalid
	ErrInvalidOrExpired = errors.New("invalid or expired magic link")
)

// Identity selects the user a link is issued for. UserID takes precedence
// over Email.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// Delivery is what a Notifier needs to reach the user.
type Delivery struct {
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Notifier hands a freshly issued link to the user.
type Notifier interface {
	SendMagicLink(ctx context.Context, d Delivery) error
}

type NotifierFunc func(ctx context.Context, d Delivery) error

func (f NotifierFunc) SendMagicLink(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}

// VerificationURL builds <baseURL>/auth/verify?token=<token>.
func VerificationURL(baseURL, token string) string {
	return baseURL + VerifyPath + "?token=" + url.QueryEscape(token)
}
