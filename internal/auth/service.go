package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/database/models"
	"github.com/hugh/go-magiclink/internal/magiclink"
	"github.com/hugh/go-magiclink/internal/store"
)

// Service ties the magic-link protocol to session credentials.
type Service struct {
	users    store.UserStore
	issuer   *magiclink.Issuer
	verifier *magiclink.Verifier
	sessions *SessionService
}

func NewService(users store.UserStore, issuer *magiclink.Issuer, verifier *magiclink.Verifier, sessions *SessionService) *Service {
	return &Service{
		users:    users,
		issuer:   issuer,
		verifier: verifier,
		sessions: sessions,
	}
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Service) RequestMagicLink(ctx context.Context, identity magiclink.Identity) (*magiclink.Issued, error) {
	return s.issuer.Issue(ctx, identity)
}

// VerifyMagicLink redeems token and returns a session credential for its owner.
func (s *Service) VerifyMagicLink(ctx context.Context, token string) (*AuthResponse, error) {
	user, err := s.verifier.Redeem(ctx, token)
	if err != nil {
		return nil, err
	}

	credential, err := s.sessions.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("signing session: %w", err)
	}

	return &AuthResponse{Token: credential, User: user}, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.FindUserByID(ctx, id)
}
