package dto

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MagicLinkRequest identifies the user either by email or by id.
type MagicLinkRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	UserID string `json:"userId,omitempty"`
}

// Normalize trims the identifying fields so validation sees what the
// services will store.
func (r *MagicLinkRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.UserID = strings.TrimSpace(r.UserID)
	r.Name = strings.TrimSpace(r.Name)
}

func (r MagicLinkRequest) Validate() map[string]string {
	emailRules := []validation.Rule{validation.Length(3, 254), is.Email}
	if r.UserID == "" {
		emailRules = append([]validation.Rule{validation.Required.Error("Email or userId is required")}, emailRules...)
	}

	return fieldErrors(validation.ValidateStruct(&r,
		validation.Field(&r.Email, emailRules...),
		validation.Field(&r.UserID, is.UUID),
		validation.Field(&r.Name, validation.Length(0, 200)),
	))
}

type MagicLinkResponse struct {
	Message   string       `json:"message"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
	// Token and MagicLink are only populated in development.
	Token     string `json:"token,omitempty"`
	MagicLink string `json:"magicLink,omitempty"`
}

type VerifyRequest struct {
	Token string `json:"token"`
}

func (r VerifyRequest) Validate() map[string]string {
	return fieldErrors(validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required.Error("Token is required")),
	))
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}
