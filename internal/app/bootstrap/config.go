// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// Backend names accepted by auth_backend and profile_backend.
const (
	backendSupabase = "supabase"
	backendMemory   = "memory"
	backendProvider = "provider"
	backendMongo    = "mongo"
)

// appConfigKeys defines the configuration keys for Bison Tutor.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: BISONTUTOR_MONGO_URI, BISONTUTOR_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI (blank disables MongoDB)"},
	{Name: "mongo_database", Default: "bison_tutor", Desc: "MongoDB database name"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "bisontutor-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},

	// Backends
	{Name: "auth_backend", Default: backendMemory, Desc: "Auth provider: 'supabase' or 'memory'"},
	{Name: "profile_backend", Default: backendProvider, Desc: "Profile rows: 'provider' (the auth backend's own tables) or 'mongo'"},
	{Name: "supabase_url", Default: "", Desc: "Supabase project URL"},
	{Name: "supabase_anon_key", Default: "", Desc: "Supabase anon (public) key"},
	{Name: "api_base_url", Default: "http://127.0.0.1:8000", Desc: "Help-request and tutor search API base URL"},

	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for email links"},
	{Name: "institution_domain", Default: "bison.howard.edu", Desc: "Email domain required to register"},

	// Session/Role Manager timing
	{Name: "bootstrap_timeout", Default: "5s", Desc: "Upper bound on the initial session check"},
	{Name: "signout_timeout", Default: "2s", Desc: "Upper bound on the provider sign-out call"},
	{Name: "profile_trigger_delay", Default: "500ms", Desc: "Wait for the profile row trigger after sign-up"},
	{Name: "tutor_trigger_delay", Default: "300ms", Desc: "Wait for the tutor profile trigger after sign-up"},

	// Browser client registry
	{Name: "client_idle_timeout", Default: "30m", Desc: "Close a browser's session manager after this long unused"},
	{Name: "client_sweep_interval", Default: "1m", Desc: "How often idle clients are swept"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth and role event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	{Name: "rate_limit_per_minute", Default: 10, Desc: "Login and password-reset attempts per minute per IP"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, BISONTUTOR_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "BISONTUTOR", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),
		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 30*24*time.Hour),

		AuthBackend:     strings.ToLower(strings.TrimSpace(appValues.String("auth_backend"))),
		ProfileBackend:  strings.ToLower(strings.TrimSpace(appValues.String("profile_backend"))),
		SupabaseURL:     appValues.String("supabase_url"),
		SupabaseAnonKey: appValues.String("supabase_anon_key"),
		APIBaseURL:      appValues.String("api_base_url"),

		BaseURL:           appValues.String("base_url"),
		InstitutionDomain: strings.TrimPrefix(strings.ToLower(strings.TrimSpace(appValues.String("institution_domain"))), "@"),

		BootstrapTimeout:    appValues.Duration("bootstrap_timeout", 5*time.Second),
		SignOutTimeout:      appValues.Duration("signout_timeout", 2*time.Second),
		ProfileTriggerDelay: appValues.Duration("profile_trigger_delay", 500*time.Millisecond),
		TutorTriggerDelay:   appValues.Duration("tutor_trigger_delay", 300*time.Millisecond),

		ClientIdleTimeout:   appValues.Duration("client_idle_timeout", 30*time.Minute),
		ClientSweepInterval: appValues.Duration("client_sweep_interval", time.Minute),

		AuditLogAuth: appValues.String("audit_log_auth"),

		RateLimitPerMinute: appValues.Int("rate_limit_per_minute"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Backend combinations are checked here so a bad deployment fails before
// any connection is attempted.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if appCfg.MongoURI != "" {
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
	}

	switch appCfg.AuthBackend {
	case backendSupabase:
		if appCfg.SupabaseURL == "" || appCfg.SupabaseAnonKey == "" {
			return fmt.Errorf("auth_backend %q requires supabase_url and supabase_anon_key", backendSupabase)
		}
	case backendMemory:
		if coreCfg != nil && coreCfg.Env == "prod" {
			logger.Warn("auth_backend is 'memory' in production; accounts are lost on restart")
		}
	default:
		return fmt.Errorf("unknown auth_backend %q (want %q or %q)", appCfg.AuthBackend, backendSupabase, backendMemory)
	}

	switch appCfg.ProfileBackend {
	case backendProvider:
	case backendMongo:
		if appCfg.MongoURI == "" {
			return fmt.Errorf("profile_backend %q requires mongo_uri", backendMongo)
		}
	default:
		return fmt.Errorf("unknown profile_backend %q (want %q or %q)", appCfg.ProfileBackend, backendProvider, backendMongo)
	}

	if appCfg.InstitutionDomain == "" {
		return fmt.Errorf("institution_domain must not be empty")
	}
	if appCfg.APIBaseURL == "" {
		return fmt.Errorf("api_base_url must not be empty")
	}

	switch appCfg.AuditLogAuth {
	case "all", "db", "log", "off":
	default:
		return fmt.Errorf("audit_log_auth must be all, db, log or off; got %q", appCfg.AuditLogAuth)
	}
	return nil
}
