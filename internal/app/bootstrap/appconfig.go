// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers
// ports, TLS, logging and CORS; everything specific to Bison Tutor lives
// here.
type AppConfig struct {
	// MongoDB connection configuration. Optional: without it the audit
	// trail goes to the log only and profiles must come from the provider.
	MongoURI      string
	MongoDatabase string

	// Browser session cookie (carries the client id only)
	SessionKey    string
	SessionName   string
	SessionDomain string
	SessionMaxAge time.Duration

	// Backends
	AuthBackend     string // "supabase" or "memory"
	ProfileBackend  string // "provider" (rows served by the auth backend) or "mongo"
	SupabaseURL     string
	SupabaseAnonKey string
	APIBaseURL      string // Help-Request/Search API

	// BaseURL is the origin used in emailed links (/verify-email, /reset-password).
	BaseURL string
	// InstitutionDomain is the only email domain allowed to register.
	InstitutionDomain string

	// Session/Role Manager timing
	BootstrapTimeout    time.Duration
	SignOutTimeout      time.Duration
	ProfileTriggerDelay time.Duration
	TutorTriggerDelay   time.Duration

	// Idle browser clients are closed after ClientIdleTimeout; the sweep
	// runs every ClientSweepInterval.
	ClientIdleTimeout   time.Duration
	ClientSweepInterval time.Duration

	// Audit logging: "all" (db+log), "db", "log", or "off"
	AuditLogAuth string

	// Login and password-reset attempts per minute per IP
	RateLimitPerMinute int
}
