package magiclink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/database/models"
	"github.com/hugh/go-magiclink/internal/metrics"
	"github.com/hugh/go-magiclink/internal/store"
	"github.com/hugh/go-magiclink/internal/validation"
	"github.com/hugh/go-magiclink/pkg/crypto"
)

type Issued struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
	URL       string
}

type Issuer struct {
	users    store.UserStore
	links    store.MagicLinkStore
	notifier Notifier
	baseURL  string
	logger   *slog.Logger
	now      func() time.Time
}

// NewIssuer builds an Issuer. A nil notifier skips delivery, which is only
// useful for tooling that prints the link itself.
func NewIssuer(st store.Store, notifier Notifier, baseURL string, logger *slog.Logger) *Issuer {
	return &Issuer{
		users:    st,
		links:    st,
		notifier: notifier,
		baseURL:  baseURL,
		logger:   logger,
		now:      time.Now,
	}
}

func (i *Issuer) Issue(ctx context.Context, identity Identity) (*Issued, error) {
	user, err := i.resolveUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	token, err := crypto.GenerateToken(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	now := i.now().UTC()
	link := &models.MagicLink{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: now.Add(TokenTTL),
		CreatedAt: now,
	}
	if err := i.links.CreateMagicLink(ctx, link); err != nil {
		return nil, fmt.Errorf("storing magic link: %w", err)
	}

	issued := &Issued{
		Token:     token,
		ExpiresAt: link.ExpiresAt,
		User:      user,
		URL:       VerificationURL(i.baseURL, token),
	}

	if i.notifier != nil {
		err := i.notifier.SendMagicLink(ctx, Delivery{
			Email:     user.Email,
			Name:      user.Name,
			URL:       issued.URL,
			ExpiresAt: issued.ExpiresAt,
		})
		if err != nil {
			// The link stays persisted and redeemable.
			return nil, fmt.Errorf("dispatching magic link: %w", err)
		}
	}

	metrics.MagicLinksIssued.Inc()
	i.logger.Info("magic link issued", "user_id", user.ID, "expires_at", issued.ExpiresAt)

	return issued, nil
}

func (i *Issuer) resolveUser(ctx context.Context, identity Identity) (*models.User, error) {
	if identity.UserID != uuid.Nil {
		user, err := i.users.FindUserByID(ctx, identity.UserID)
		if err != nil {
			return nil, fmt.Errorf("finding user %s: %w", identity.UserID, err)
		}
		return user, nil
	}

	email := models.NormalizeEmail(identity.Email)
	if email == "" {
		return nil, validation.NewFieldError("email", "Email or userId is required")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}

	name := validation.SanitizeString(identity.Name)
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}

	user, err := store.FindOrCreateUser(ctx, i.users, email, name)
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}
	return user, nil
}
