package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrMalformedCredential = errors.New("malformed credential")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrExpired             = errors.New("credential has expired")
	ErrMissingSecret       = errors.New("session signing secret is not configured")
)

const issuer = "go-magiclink"

type Claims struct {
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// SessionService mints and checks HS256 session credentials. It holds no
// per-session state.
type SessionService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// parser only decodes; signature and expiry are checked explicitly in Verify.
var parser = jwt.NewParser(jwt.WithStrictDecoding())

func NewSessionService(secret string, expiry time.Duration) (*SessionService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	if expiry <= 0 {
		expiry = DefaultSessionTTL
	}
	return &SessionService{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}, nil
}

// Expiry is the lifetime applied by GenerateToken.
func (s *SessionService) Expiry() time.Duration {
	return s.expiry
}

// GenerateToken issues a credential with the configured expiry.
func (s *SessionService) GenerateToken(userID uuid.UUID, email string) (string, error) {
	return s.Issue(userID, email, s.expiry)
}

// Issue signs a credential valid for ttl from now.
func (s *SessionService) Issue(userID uuid.UUID, email string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks structure, then signature, then expiry, in that order.
func (s *SessionService) Verify(credential string) (*Claims, error) {
	parts := strings.Split(credential, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, ErrMalformedCredential
	}

	signature, err := parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, ErrInvalidSignature
	}
	// hmac.Equal under the hood, so the comparison is constant time.
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], signature, s.secret); err != nil {
		return nil, ErrInvalidSignature
	}

	claims := &Claims{}
	token, _, err := parser.ParseUnverified(credential, claims)
	if err != nil || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, ErrMalformedCredential
	}
	if claims.ExpiresAt == nil {
		return nil, ErrMalformedCredential
	}
	if claims.ExpiresAt.Time.Before(s.now()) {
		return nil, ErrExpired
	}

	return claims, nil
}
