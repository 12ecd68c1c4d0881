package authsession

import "github.com/dalemusser/bisontutor/internal/domain/models"

// Status is the externally visible state of a Manager.
type Status string

const (
	StatusUnknown       Status = "unknown"
	StatusLoading       Status = "loading"
	StatusAnonymous     Status = "anonymous"
	StatusAuthenticated Status = "authenticated"
)

// State is a snapshot of a Manager. User and Session are copies.
type State struct {
	Status  Status
	User    *models.Account
	Session *models.Session

	// ProfileHydrated is false while User is the minimal record built from
	// the session claims.
	ProfileHydrated bool
}

// Loading reports whether the first session check is still pending.
func (s State) Loading() bool {
	return s.Status == StatusUnknown || s.Status == StatusLoading
}

// SignedIn reports whether an account is loaded.
func (s State) SignedIn() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}
