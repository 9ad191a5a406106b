package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/auth"
	"github.com/hugh/go-magiclink/internal/database"
	"github.com/hugh/go-magiclink/internal/database/models"
	"github.com/hugh/go-magiclink/internal/store/gormstore"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const TestSecret = "test-secret-key-for-testing"

// SetupTestDB creates an in-memory SQLite database for testing.
// The pool is pinned to one connection because every new connection
// to ":memory:" opens a fresh, empty database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(logger.Default.LogMode(logger.Silent)))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// NewTestStore returns a gorm-backed store over a fresh test database.
func NewTestStore(t *testing.T) *gormstore.Store {
	t.Helper()
	return gormstore.New(SetupTestDB(t))
}

// CreateTestUser creates a user with the given email, or a random one if empty.
func CreateTestUser(t *testing.T, st *gormstore.Store, email string) *models.User {
	t.Helper()

	if email == "" {
		email = "test-" + uuid.New().String()[:8] + "@example.com"
	}
	user, err := st.CreateUser(context.Background(), email, "Test User")
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestSessionService creates a session service for testing
func CreateTestSessionService(t *testing.T) *auth.SessionService {
	t.Helper()

	sessions, err := auth.NewSessionService(TestSecret, 24*time.Hour)
	if err != nil {
		t.Fatalf("failed to create session service: %v", err)
	}
	return sessions
}

// GenerateTestToken generates a valid session token for the given user
func GenerateTestToken(t *testing.T, sessions *auth.SessionService, user *models.User) string {
	t.Helper()

	token, err := sessions.GenerateToken(user.ID, user.Email)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	Store    *gormstore.Store
	Sessions *auth.SessionService
	User     *models.User
	Token    string
}

// NewTestContext creates a complete test setup with a store, a user and a session token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	st := NewTestStore(t)
	sessions := CreateTestSessionService(t)
	user := CreateTestUser(t, st, "")

	return &TestSetup{
		Store:    st,
		Sessions: sessions,
		User:     user,
		Token:    GenerateTestToken(t, sessions, user),
	}
}
