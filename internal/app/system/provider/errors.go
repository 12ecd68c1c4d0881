package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoSession is returned by calls that need a signed-in session.
var ErrNoSession = errors.New("auth session missing")

// Error is a failure reported by the provider. It is passed through to
// callers as-is.
type Error struct {
	Status  int    // HTTP status, 0 when not applicable
	Code    string // provider or database error code (e.g. 23505, PGRST116)
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error %s: %s", e.Code, e.Message)
	}
	if e.Status != 0 {
		return fmt.Sprintf("provider error %d: %s", e.Status, e.Message)
	}
	return "provider error: " + e.Message
}

// Duplicate codes used by both backends.
const (
	CodeUniqueViolation = "23505"
	CodeNoRows          = "PGRST116"
)

// IsDuplicate reports whether err is a unique-key violation.
func IsDuplicate(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Code == CodeUniqueViolation || pe.Status == http.StatusConflict
}

// IsNotFound reports whether err means "no such row" (including the
// not-acceptable answer PostgREST gives for an empty single-row read).
func IsNotFound(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Code == CodeNoRows || pe.Status == http.StatusNotFound || pe.Status == http.StatusNotAcceptable
}
