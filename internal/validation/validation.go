package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// ErrInvalid is matched by every FieldError.
var ErrInvalid = errors.New("validation failed")

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	uuidRegex  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

const (
	MaxEmailLength = 254
	MaxNameLength  = 200
)

// FieldError reports a rejected input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *FieldError) Is(target error) bool {
	return target == ErrInvalid
}

func NewFieldError(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message}
}

// IsValidEmail checks if the string is a valid email format
func IsValidEmail(email string) bool {
	if len(email) > MaxEmailLength {
		return false
	}
	return emailRegex.MatchString(email)
}

// IsValidUUID checks if the string is a valid UUID format
func IsValidUUID(id string) bool {
	return uuidRegex.MatchString(id)
}

// ValidateEmail returns a FieldError for missing or malformed addresses.
// The input is expected to be normalized already.
func ValidateEmail(email string) error {
	if email == "" {
		return NewFieldError("email", "Email is required")
	}
	if !IsValidEmail(email) {
		return NewFieldError("email", "Invalid email format")
	}
	return nil
}

// ValidateName rejects names that are too long once sanitized.
func ValidateName(name string) error {
	if len([]rune(name)) > MaxNameLength {
		return NewFieldError("name", "Name must be at most 200 characters")
	}
	return nil
}

// SanitizeString removes potentially dangerous characters for display
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")

	var result strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
