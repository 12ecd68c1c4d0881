package authsession

import (
	"errors"
	"fmt"

	"github.com/dalemusser/bisontutor/internal/domain/models"
)

// Errors returned by Manager operations. Provider failures are passed
// through as *provider.Error, usually wrapped with the step that failed.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailUnverified    = errors.New("please verify your email before logging in. Check your inbox")
	ErrInvalidDomain      = errors.New("email domain not allowed")
	ErrInvalidRole        = errors.New("role must be 'student' or 'tutor'")
	ErrNoRoleSelected     = errors.New("please select at least one role")
	ErrRoleAlreadyHeld    = errors.New("role already held")
	ErrRoleNotHeld        = errors.New("role not held")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrNoActiveSession    = errors.New("your reset link has expired or was already used. Please request a new one")
	ErrProfileNotFound    = errors.New("profile not found. Please complete your profile setup first")
	ErrAlreadyRegistered  = errors.New("this email is already registered. Please log in instead")

	// ErrClosed is returned by operations on a Manager after Close.
	ErrClosed = errors.New("session manager closed")
)

// MinPasswordLength is the shortest password accepted.
const MinPasswordLength = 6

// DomainError rejects an email outside the institution's domain.
type DomainError struct {
	Domain string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("only @%s emails are allowed", e.Domain)
}

func (e *DomainError) Unwrap() error { return ErrInvalidDomain }

// RoleError ties a role failure to the role it concerns.
type RoleError struct {
	Role models.Role
	Err  error
}

func (e *RoleError) Error() string {
	switch e.Err {
	case ErrRoleAlreadyHeld:
		return fmt.Sprintf("you already have the %s role", e.Role)
	case ErrRoleNotHeld:
		return fmt.Sprintf("you don't have the %s role", e.Role)
	default:
		return e.Err.Error()
	}
}

func (e *RoleError) Unwrap() error { return e.Err }
