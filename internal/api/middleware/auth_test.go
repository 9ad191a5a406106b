package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/api/dto"
	"github.com/hugh/go-magiclink/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessions(t *testing.T) *auth.SessionService {
	t.Helper()
	svc, err := auth.NewSessionService("test-secret", 24*time.Hour)
	require.NoError(t, err)
	return svc
}

func okHandler(t *testing.T, wantID uuid.UUID, wantEmail string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantID, GetUserID(r.Context()))
		assert.Equal(t, wantEmail, GetUserEmail(r.Context()))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func TestAuth_CredentialSources(t *testing.T) {
	sessions := newSessions(t)
	userID := uuid.New()
	token, err := sessions.GenerateToken(userID, "test@example.com")
	require.NoError(t, err)

	tests := []struct {
		name  string
		apply func(r *http.Request)
	}{
		{"authorization header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token}) }},
		{"x-auth-token header", func(r *http.Request) { r.Header.Set("X-Auth-Token", token) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Auth(sessions)(okHandler(t, userID, "test@example.com"))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			tt.apply(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "OK", rec.Body.String())
		})
	}
}

func TestAuth_Rejections(t *testing.T) {
	sessions := newSessions(t)
	userID := uuid.New()

	valid, err := sessions.GenerateToken(userID, "test@example.com")
	require.NoError(t, err)
	expired, err := sessions.Issue(userID, "test@example.com", -time.Hour)
	require.NoError(t, err)

	other, err := auth.NewSessionService("other-secret", time.Hour)
	require.NoError(t, err)
	foreign, err := other.GenerateToken(userID, "test@example.com")
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing", "", "Unauthorized"},
		{"malformed", "Bearer not-a-token", "Malformed credential"},
		{"wrong secret", "Bearer " + foreign, "Invalid signature"},
		{"expired", "Bearer " + expired, "Session expired"},
		{"wrong scheme", "Basic " + valid, "Unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := Auth(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			var body dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body.Error)
		})
	}
}

func TestAuth_HeaderTakesPrecedenceOverCookie(t *testing.T) {
	sessions := newSessions(t)
	headerUser := uuid.New()
	cookieUser := uuid.New()

	headerToken, err := sessions.GenerateToken(headerUser, "header@example.com")
	require.NoError(t, err)
	cookieToken, err := sessions.GenerateToken(cookieUser, "cookie@example.com")
	require.NoError(t, err)

	handler := Auth(sessions)(okHandler(t, headerUser, "header@example.com"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+headerToken)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: cookieToken})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestContextHelpers_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, uuid.Nil, GetUserID(req.Context()))
	assert.Equal(t, "", GetUserEmail(req.Context()))
}
