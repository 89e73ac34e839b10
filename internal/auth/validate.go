// Package auth checks login and registration forms before anything is sent
// to the identity service.
package auth

import (
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password the forms accept
const MinPasswordLength = 6

// ErrorKind classifies a form validation failure
type ErrorKind int

const (
	EmptyFields ErrorKind = iota + 1
	WeakPassword
	PasswordMismatch
)

// String returns the kind name
func (k ErrorKind) String() string {
	switch k {
	case EmptyFields:
		return "EmptyFields"
	case WeakPassword:
		return "WeakPassword"
	case PasswordMismatch:
		return "PasswordMismatch"
	default:
		return "Unknown"
	}
}

// ValidationError is returned when a form fails a local check. Its message is
// the text shown to the user.
type ValidationError struct {
	Kind ErrorKind
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case EmptyFields:
		return "Fill all fields"
	case WeakPassword:
		return "Password is invalid"
	case PasswordMismatch:
		return "Password and confirmation do not match"
	default:
		return "Form is invalid"
	}
}

// Is matches any *ValidationError of the same kind, so callers can write
// errors.Is(err, auth.ErrWeakPassword).
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

var (
	ErrEmptyFields      = &ValidationError{Kind: EmptyFields}
	ErrWeakPassword     = &ValidationError{Kind: WeakPassword}
	ErrPasswordMismatch = &ValidationError{Kind: PasswordMismatch}
)

// Credentials holds the form input for a single submit attempt. Username and
// PasswordConfirmation are only used by registration.
type Credentials struct {
	Email                string
	Password             string
	Username             string
	PasswordConfirmation string
}

// ValidateLogin checks the login form. Returns nil when the form is valid.
func ValidateLogin(c Credentials) error {
	if anyBlank(c.Email, c.Password) {
		return ErrEmptyFields
	}
	if tooShort(c.Password) {
		return ErrWeakPassword
	}
	return nil
}

// ValidateRegistration checks the registration form. Rules are applied in
// order and the first failure wins.
func ValidateRegistration(c Credentials) error {
	if anyBlank(c.Email, c.Password, c.Username, c.PasswordConfirmation) {
		return ErrEmptyFields
	}
	if tooShort(c.Password) || tooShort(c.PasswordConfirmation) {
		return ErrWeakPassword
	}
	if c.Password != c.PasswordConfirmation {
		return ErrPasswordMismatch
	}
	return nil
}

// HasFieldError reports whether any of the error messages mentions the field
// name, ignoring case. The rendering layer uses it to highlight inputs.
func HasFieldError(errs []string, field string) bool {
	field = strings.ToLower(field)
	if field == "" {
		return false
	}
	for _, e := range errs {
		if strings.Contains(strings.ToLower(e), field) {
			return true
		}
	}
	return false
}

func anyBlank(fields ...string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return true
		}
	}
	return false
}

func tooShort(password string) bool {
	return utf8.RuneCountInString(password) < MinPasswordLength
}
