package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/api/dto"
	"github.com/hugh/go-magiclink/internal/api/handlers"
	"github.com/hugh/go-magiclink/internal/api/middleware"
	"github.com/hugh/go-magiclink/internal/testutil"
	"github.com/hugh/go-magiclink/internal/users"
	"github.com/hugh/go-magiclink/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupUserTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	logger := util.DiscardLogger()
	handler := handlers.NewUserHandler(users.NewService(tc.Store, logger), logger, false)

	r := chi.NewRouter()
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(middleware.Auth(tc.Sessions))
		r.Get("/", handler.List)
		r.Post("/", handler.Create)
		r.Get("/{id}", handler.Get)
		r.Put("/{id}", handler.Update)
		r.Patch("/{id}", handler.Update)
	})

	return r, tc
}

func TestUserHandler_Create(t *testing.T) {
	router, tc := setupUserTestRouter(t)

	t.Run("successful creation", func(t *testing.T) {
		body := map[string]string{"email": "Created@Example.com", "name": "Created"}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/users", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusCreated)
		var user dto.UserResponse
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, "created@example.com", user.Email)
		assert.Equal(t, "Created", user.Name)
		assert.False(t, user.IsEmailVerified)
		assert.Nil(t, user.LastLogin)
	})

	t.Run("duplicate email", func(t *testing.T) {
		body := map[string]string{"email": "CREATED@example.com"}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/users", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusConflict)
		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "User already exists", resp.Error)
	})

	t.Run("email with surrounding whitespace", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/users", map[string]string{"email": " Pad@Example.com"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusCreated)
		var user dto.UserResponse
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, "pad@example.com", user.Email)
	})

	t.Run("missing email", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/users", map[string]string{"name": "x"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("requires auth", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/users", map[string]string{"email": "anon@example.com"})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})
}

func TestUserHandler_List(t *testing.T) {
	router, tc := setupUserTestRouter(t)
	testutil.CreateTestUser(t, tc.Store, "second@example.com")

	t.Run("all users", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/users", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		var resp struct {
			Data  []dto.UserResponse `json:"data"`
			Total int                `json:"total"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, 2, resp.Total)
		assert.Len(t, resp.Data, 2)
	})

	t.Run("by email", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/users?email=Second@Example.com", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		var user dto.UserResponse
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, "second@example.com", user.Email)
	})

	t.Run("unknown email", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/users?email=nobody@example.com", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestUserHandler_Get(t *testing.T) {
	router, tc := setupUserTestRouter(t)

	t.Run("found", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/users/"+tc.User.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		var user dto.UserResponse
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, tc.User.Email, user.Email)
	})

	t.Run("not found", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/users/"+uuid.NewString(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/users/not-a-uuid", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "Invalid user ID", resp.Error)
	})
}

func TestUserHandler_Update(t *testing.T) {
	router, tc := setupUserTestRouter(t)
	path := "/api/v1/users/" + tc.User.ID.String()

	t.Run("patch name", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PATCH", path, map[string]string{"name": "Renamed"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		var user dto.UserResponse
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, "Renamed", user.Name)
		assert.Equal(t, tc.User.Email, user.Email)
	})

	t.Run("non-whitelisted fields are ignored", func(t *testing.T) {
		body := map[string]interface{}{
			"id":              uuid.NewString(),
			"createdAt":       "2001-01-01T00:00:00Z",
			"isEmailVerified": true,
			"role":            "admin",
		}
		req := testutil.AuthenticatedRequest(t, "PUT", path, body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		var user dto.UserResponse
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, tc.User.ID.String(), user.ID)
		assert.True(t, user.IsEmailVerified)
		assert.NotEqual(t, 2001, user.CreatedAt.Year())
		assert.NotContains(t, rr.Body.String(), "role")
	})

	t.Run("email taken", func(t *testing.T) {
		other := testutil.CreateTestUser(t, tc.Store, "taken@example.com")
		require.NotEqual(t, tc.User.ID, other.ID)

		req := testutil.AuthenticatedRequest(t, "PATCH", path, map[string]string{"email": "taken@example.com"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})

	t.Run("padded email", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PATCH", path, map[string]string{"email": " Moved@Example.com "}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		var user dto.UserResponse
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, "moved@example.com", user.Email)
	})

	t.Run("invalid email", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PATCH", path, map[string]string{"email": "nope"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("unknown user", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PATCH", "/api/v1/users/"+uuid.NewString(), map[string]string{"name": "x"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}
