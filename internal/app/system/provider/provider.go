// Package provider defines the contracts of the external auth provider and
// its row store. The Session/Role manager only talks to these interfaces;
// supabase, memprovider and the Mongo profile store implement them.
package provider

import (
	"context"

	"github.com/dalemusser/bisontutor/internal/domain/models"
)

// EventKind names an auth-state change notification.
type EventKind string

const (
	EventInitialSession   EventKind = "INITIAL_SESSION"
	EventSignedIn         EventKind = "SIGNED_IN"
	EventSignedOut        EventKind = "SIGNED_OUT"
	EventTokenRefreshed   EventKind = "TOKEN_REFRESHED"
	EventUserUpdated      EventKind = "USER_UPDATED"
	EventPasswordRecovery EventKind = "PASSWORD_RECOVERY"
)

// Event is one auth-state change. Session is nil for sign-out.
type Event struct {
	Kind    EventKind
	Session *models.Session
}

// SignUpParams is the payload of a sign-up call. Data is stored as user
// metadata ({name, roles, active_role}).
type SignUpParams struct {
	Email      string
	Password   string
	RedirectTo string
	Data       map[string]any
}

// SignUpResult is the provider's answer to a sign-up. Session is nil
// while the email address awaits confirmation.
type SignUpResult struct {
	User    *models.Identity `json:"user"`
	Session *models.Session  `json:"session,omitempty"`
}

// OTPTypeEmail is the verification type used by signup confirmation links.
const OTPTypeEmail = "email"

// Auth is the authentication half of the provider.
type Auth interface {
	// GetSession returns the current session or nil when signed out.
	GetSession(ctx context.Context) (*models.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, p SignUpParams) (*SignUpResult, error)
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, password string) (*models.Identity, error)
	VerifyOTP(ctx context.Context, tokenHash, otpType string) (*models.Session, error)
	GetUser(ctx context.Context) (*models.Identity, error)
	// SetSession adopts tokens delivered out of band (recovery links).
	SetSession(ctx context.Context, accessToken, refreshToken string) (*models.Session, error)
	// Subscribe returns a subscription to auth-state changes.
	Subscribe() *Subscription
}

// Rows is the relational half of the provider: profiles and tutor_profiles.
type Rows interface {
	// GetProfile returns nil, nil when no row exists.
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	InsertProfile(ctx context.Context, p models.Profile) error
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error
	// GetTutorProfile returns nil, nil when no row exists.
	GetTutorProfile(ctx context.Context, id string) (*models.TutorProfile, error)
	InsertTutorProfile(ctx context.Context, tp models.TutorProfile) error
	UpsertTutorProfile(ctx context.Context, tp models.TutorProfile) error
}
