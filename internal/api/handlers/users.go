package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/api/dto"
	"github.com/hugh/go-magiclink/internal/users"
)

type UserHandler struct {
	users *users.Service
	errs  errorWriter
}

func NewUserHandler(svc *users.Service, logger *slog.Logger, exposeErrors bool) *UserHandler {
	return &UserHandler{
		users: svc,
		errs:  errorWriter{logger: logger, exposeErrors: exposeErrors},
	}
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Normalize()

	if errors := req.Validate(); len(errors) > 0 {
		writeValidation(w, errors)
		return
	}

	user, err := h.users.Create(r.Context(), req.Email, req.Name)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.NewUserResponse(user))
}

// List returns the newest users, or the single user matching ?email=.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if email := r.URL.Query().Get("email"); email != "" {
		user, err := h.users.FindByEmail(r.Context(), email)
		if err != nil {
			h.errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.NewUserResponse(user))
		return
	}

	list, err := h.users.List(r.Context())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewUserListResponse(list))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewUserResponse(user))
}

// Update serves both PUT and PATCH. Only the fields in UpdateUserRequest are
// applied; anything else in the body is ignored.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req dto.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Normalize()

	if errors := req.Validate(); len(errors) > 0 {
		writeValidation(w, errors)
		return
	}

	user, err := h.users.Update(r.Context(), id, req.ToUpdate())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewUserResponse(user))
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user ID"})
		return uuid.Nil, false
	}
	return id, true
}
