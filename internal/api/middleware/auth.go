package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/api/dto"
	"github.com/hugh/go-magiclink/internal/auth"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserEmailKey contextKey = "user_email"
)

// SessionCookie carries the session credential for browser clients.
const SessionCookie = "token"

// CredentialVerifier is satisfied by *auth.SessionService.
type CredentialVerifier interface {
	Verify(credential string) (*auth.Claims, error)
}

func Auth(verifier CredentialVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := credentialFromRequest(r)
			if token == "" {
				unauthorized(w, auth.ErrUnauthorized)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				unauthorized(w, err)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UserEmailKey, claims.Email)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// credentialFromRequest checks the Authorization header, then the session
// cookie, then X-Auth-Token.
func credentialFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return strings.TrimSpace(r.Header.Get("X-Auth-Token"))
}

func unauthorized(w http.ResponseWriter, err error) {
	message := "Unauthorized"
	switch {
	case errors.Is(err, auth.ErrExpired):
		message = "Session expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		message = "Invalid signature"
	case errors.Is(err, auth.ErrMalformedCredential):
		message = "Malformed credential"
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: message})
}

// Helper functions to extract values from context
func GetUserID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func GetUserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(UserEmailKey).(string); ok {
		return email
	}
	return ""
}
