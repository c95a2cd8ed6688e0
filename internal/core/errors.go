package core

import "errors"

// Domain errors. Callers wrap these with context and match with errors.Is.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already in use")
	ErrDuplicateUsername  = errors.New("username already in use")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidEntryKind   = errors.New("invalid entry kind")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrFieldTooLong       = errors.New("field too long")
	ErrSignupDisabled     = errors.New("signup is disabled")
)

// IsValidation reports whether err is a request problem the caller can fix.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInvalidCategory, ErrInvalidEntryKind, ErrInvalidRole,
		ErrInvalidEmail, ErrMissingFields, ErrFieldTooLong, ErrInvalidUserID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
