package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{"valid_simple", "user@example.com", true},
		{"valid_subdomain", "user@mail.example.com", true},
		{"valid_plus", "user+tag@example.com", true},
		{"valid_dash", "user-name@example.com", true},
		{"valid_dot", "user.name@example.com", true},
		{"invalid_no_at", "userexample.com", false},
		{"invalid_no_domain", "user@", false},
		{"invalid_no_user", "@example.com", false},
		{"invalid_double_at", "user@@example.com", false},
		{"invalid_spaces", "user @example.com", false},
		{"invalid_no_tld", "user@example", false},
		{"too_long", strings.Repeat("a", 250) + "@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidEmail(tt.email), "Email: %s", tt.email)
		})
	}
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("550e8400-e29b-41d4-a716-446655440000"))
	assert.False(t, IsValidUUID("550e8400e29b41d4a716446655440000"))
	assert.False(t, IsValidUUID("not-a-uuid"))
}

func TestValidateEmail(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		err := ValidateEmail("")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalid))

		var fe *FieldError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "email", fe.Field)
		assert.Equal(t, "Email is required", fe.Message)
	})

	t.Run("malformed", func(t *testing.T) {
		err := ValidateEmail("not-an-email")
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateEmail("a@b.co"))
	})
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName(""))
	assert.NoError(t, ValidateName(strings.Repeat("é", MaxNameLength)))
	assert.ErrorIs(t, ValidateName(strings.Repeat("x", MaxNameLength+1)), ErrInvalid)
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"normal text", "normal text"},
		{"with\x00null", "withnull"},
		{"with\x07bell", "withbell"},
		{"  padded  ", "padded"},
		{"tab\tinside", "tab\tinside"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SanitizeString(tt.input))
	}
}
