package dto

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/hugh/go-magiclink/internal/database/models"
	"github.com/hugh/go-magiclink/internal/store"
)

// UserResponse is the public representation of a user.
type UserResponse struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	LastLogin       *time.Time `json:"lastLogin"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:              u.ID.String(),
		Email:           u.Email,
		Name:            u.Name,
		IsEmailVerified: u.IsEmailVerified,
		LastLogin:       u.LastLogin,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func NewUserListResponse(users []models.User) ListResponse {
	data := make([]UserResponse, 0, len(users))
	for i := range users {
		data = append(data, NewUserResponse(&users[i]))
	}
	return ListResponse{Data: data, Total: len(data)}
}

type CreateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (r *CreateUserRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)
}

func (r CreateUserRequest) Validate() map[string]string {
	return fieldErrors(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required.Error("Email is required"), validation.Length(3, 254), is.Email),
		validation.Field(&r.Name, validation.Length(0, 200)),
	))
}

// UpdateUserRequest lists the only fields a client may change. Anything else
// in the body is dropped by the decoder.
type UpdateUserRequest struct {
	Name            *string    `json:"name"`
	Email           *string    `json:"email"`
	IsEmailVerified *bool      `json:"isEmailVerified"`
	LastLogin       *time.Time `json:"lastLogin"`
}

func (r *UpdateUserRequest) Normalize() {
	if r.Email != nil {
		email := strings.TrimSpace(*r.Email)
		r.Email = &email
	}
}

func (r UpdateUserRequest) Validate() map[string]string {
	return fieldErrors(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.NilOrNotEmpty.Error("Email cannot be empty"), is.Email),
		validation.Field(&r.Name, validation.Length(0, 200)),
	))
}

func (r UpdateUserRequest) ToUpdate() store.UserUpdate {
	return store.UserUpdate{
		Name:            r.Name,
		Email:           r.Email,
		IsEmailVerified: r.IsEmailVerified,
		LastLogin:       r.LastLogin,
	}
}
