// internal/app/bootstrap/routes.go
package bootstrap

import (
	"fmt"
	"net/http"

	auditlogfeature "github.com/dalemusser/bisontutor/internal/app/features/auditlog"
	errorsfeature "github.com/dalemusser/bisontutor/internal/app/features/errors"
	healthfeature "github.com/dalemusser/bisontutor/internal/app/features/health"
	heartbeatfeature "github.com/dalemusser/bisontutor/internal/app/features/heartbeat"
	helprequestsfeature "github.com/dalemusser/bisontutor/internal/app/features/helprequests"
	loginfeature "github.com/dalemusser/bisontutor/internal/app/features/login"
	logoutfeature "github.com/dalemusser/bisontutor/internal/app/features/logout"
	passwordfeature "github.com/dalemusser/bisontutor/internal/app/features/password"
	profilefeature "github.com/dalemusser/bisontutor/internal/app/features/profile"
	registerfeature "github.com/dalemusser/bisontutor/internal/app/features/register"
	rolesfeature "github.com/dalemusser/bisontutor/internal/app/features/roles"
	sessionfeature "github.com/dalemusser/bisontutor/internal/app/features/session"
	transcriptfeature "github.com/dalemusser/bisontutor/internal/app/features/transcript"
	tutorsfeature "github.com/dalemusser/bisontutor/internal/app/features/tutors"
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/metrics"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. Every route except /health and /metrics
// runs behind LoadClient, which attaches the browser's session manager.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if deps.svc == nil || deps.svc.Clients == nil {
		return nil, fmt.Errorf("build handler: Startup has not run")
	}
	svc := deps.svc

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	sessionMgr.SetSettleLimit(appCfg.BootstrapTimeout)

	return newRouter(sessionMgr, deps, svc, logger), nil
}

func newRouter(sessionMgr *auth.SessionManager, deps DBDeps, svc *services, logger *zap.Logger) chi.Router {
	errLog := errorsfeature.NewErrorLogger(logger)
	errorsHandler := errorsfeature.NewHandler()

	r := chi.NewRouter()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	// Health check and metrics for load balancers and scrapers; these do
	// not need a browser client.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, svc.API, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", metrics.Handler(svc.Gatherer))

	r.Group(func(r chi.Router) {
		// Attach the browser's session manager (created on first visit).
		r.Use(sessionMgr.LoadClient(svc.Clients))

		// Authentication
		loginHandler := loginfeature.NewHandler(svc.Limiter, svc.Audit, svc.Metrics, errLog, logger)
		r.Mount("/login", loginfeature.Routes(loginHandler))

		logoutHandler := logoutfeature.NewHandler(sessionMgr, svc.Clients, logger)
		r.Mount("/logout", logoutfeature.Routes(logoutHandler))

		registerHandler := registerfeature.NewHandler(errLog, logger)
		r.Mount("/register", registerfeature.Routes(registerHandler))

		passwordHandler := passwordfeature.NewHandler(svc.Limiter, svc.Audit, svc.Metrics, errLog, logger)
		r.Mount("/password", passwordfeature.Routes(passwordHandler))

		sessionHandler := sessionfeature.NewHandler()
		r.Mount("/session", sessionfeature.Routes(sessionHandler))

		heartbeatHandler := heartbeatfeature.NewHandler(logger)
		r.Mount("/heartbeat", heartbeatfeature.Routes(heartbeatHandler))

		auditHandler := auditlogfeature.NewHandler(svc.AuditStore, sessionMgr, errLog, logger)
		r.Mount("/audit", auditlogfeature.Routes(auditHandler))

		// Roles and profile
		rolesHandler := rolesfeature.NewHandler(svc.API, errLog, logger)
		r.Mount("/roles", rolesfeature.Routes(rolesHandler))

		profileHandler := profilefeature.NewHandler(errLog, logger)
		r.Mount("/profile", profilefeature.Routes(profileHandler, sessionMgr))

		// Help-Request/Search API
		tutorsHandler := tutorsfeature.NewHandler(svc.API, errLog, logger)
		r.Mount("/tutors", tutorsfeature.Routes(tutorsHandler, sessionMgr))

		transcriptHandler := transcriptfeature.NewHandler(svc.API, errLog, logger)
		r.Mount("/transcript", transcriptfeature.Routes(transcriptHandler, sessionMgr))

		helpHandler := helprequestsfeature.NewHandler(svc.API, sessionMgr, errLog, logger)
		r.Mount("/help-requests", helprequestsfeature.Routes(helpHandler))
	})

	return r
}
