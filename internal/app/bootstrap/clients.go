// internal/app/bootstrap/clients.go
package bootstrap

import (
	"fmt"

	"github.com/dalemusser/bisontutor/internal/app/store/profiles"
	"github.com/dalemusser/bisontutor/internal/app/system/auditlog"
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/mailer"
	"github.com/dalemusser/bisontutor/internal/app/system/memprovider"
	"github.com/dalemusser/bisontutor/internal/app/system/metrics"
	"github.com/dalemusser/bisontutor/internal/app/system/provider"
	"github.com/dalemusser/bisontutor/internal/app/system/sessionstore"
	"github.com/dalemusser/bisontutor/internal/app/system/supabase"
	"go.uber.org/zap"
)

// newClientFactory returns the factory the registry calls once per
// browser. Each browser gets its own auth client, session store and
// manager; the row store is per browser for Supabase (row-level security
// uses that browser's bearer) and shared otherwise.
func newClientFactory(appCfg AppConfig, deps DBDeps, auditLog *auditlog.Logger, rec *metrics.Recorder, logger *zap.Logger) (auth.Factory, error) {
	var sharedRows provider.Rows
	if appCfg.ProfileBackend == backendMongo {
		if deps.MongoDatabase == nil {
			return nil, fmt.Errorf("profile_backend %q needs a MongoDB connection", backendMongo)
		}
		sharedRows = profiles.New(deps.MongoDatabase)
	}

	var newAuth func() (provider.Auth, provider.Rows)
	switch appCfg.AuthBackend {
	case backendSupabase:
		newAuth = func() (provider.Auth, provider.Rows) {
			cl := supabase.New(supabase.Config{
				URL:     appCfg.SupabaseURL,
				AnonKey: appCfg.SupabaseAnonKey,
				Logger:  logger,
			})
			return cl, cl
		}
	case backendMemory:
		backend := memprovider.New(memprovider.Options{
			ProfileTrigger: true,
			Mailer:         mailer.NewOutbox(logger),
			Logger:         logger,
		})
		newAuth = func() (provider.Auth, provider.Rows) {
			return backend.NewClient(), backend
		}
	default:
		return nil, fmt.Errorf("unknown auth_backend %q", appCfg.AuthBackend)
	}

	cfg := authsession.Config{
		Domain:              appCfg.InstitutionDomain,
		BaseURL:             appCfg.BaseURL,
		BootstrapTimeout:    appCfg.BootstrapTimeout,
		SignOutTimeout:      appCfg.SignOutTimeout,
		ProfileTriggerDelay: appCfg.ProfileTriggerDelay,
		TutorTriggerDelay:   appCfg.TutorTriggerDelay,
	}

	return func(clientID string) (*authsession.Manager, error) {
		a, rows := newAuth()
		if sharedRows != nil {
			rows = sharedRows
		}
		return authsession.New(a, rows, sessionstore.New(), cfg,
			authsession.WithLogger(logger.With(zap.String("client_id", clientID))),
			authsession.WithAuditor(auditLog),
			authsession.WithMetrics(rec),
		), nil
	}, nil
}
