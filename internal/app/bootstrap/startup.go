// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/client/tutorapi"
	"github.com/dalemusser/bisontutor/internal/app/store/audit"
	"github.com/dalemusser/bisontutor/internal/app/system/auditlog"
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/metrics"
	"github.com/dalemusser/bisontutor/internal/app/system/ratelimit"
	"github.com/dalemusser/bisontutor/internal/app/system/timeouts"
	"github.com/dalemusser/bisontutor/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// services are the long-lived components shared by every request.
type services struct {
	Audit      *auditlog.Logger
	AuditStore *audit.Store // nil without Mongo
	Metrics    *metrics.Recorder
	Gatherer   prometheus.Gatherer
	Clients    *auth.Registry
	API        *tutorapi.Client
	Limiter    *ratelimit.LoginLimiter
	Cleanup    *workers.ClientCleanup
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built: it applies
// the configured timeouts and builds the audit log, metrics, the browser
// client registry, the API client and the background cleanup worker.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.svc == nil {
		return fmt.Errorf("startup: dependencies were not initialized by ConnectDB")
	}
	svc, err := buildServices(appCfg, deps, logger)
	if err != nil {
		return err
	}
	*deps.svc = *svc
	deps.svc.Cleanup.Start()
	return nil
}

func buildServices(appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*services, error) {
	timeouts.Configure(timeouts.Config{
		Bootstrap:    appCfg.BootstrapTimeout,
		SignOut:      appCfg.SignOutTimeout,
		TriggerDelay: appCfg.ProfileTriggerDelay,
	})

	var auditStore *audit.Store
	if deps.MongoDatabase != nil {
		auditStore = audit.New(deps.MongoDatabase)
	}
	auditLog := auditlog.New(auditStore, logger, auditlog.Config{
		Auth: appCfg.AuditLogAuth,
		Role: appCfg.AuditLogAuth,
	})

	reg, rec := metrics.NewRegistry()

	factory, err := newClientFactory(appCfg, deps, auditLog, rec, logger)
	if err != nil {
		return nil, err
	}
	clients := auth.NewRegistry(factory, rec, logger)

	api, err := tutorapi.New(tutorapi.Config{
		BaseURL: appCfg.APIBaseURL,
		Logger:  logger,
		Metrics: rec,
	})
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.NewLoginLimiter(appCfg.RateLimitPerMinute)

	interval := appCfg.ClientSweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	cleanup := workers.NewClientCleanup(clients, logger, interval, appCfg.ClientIdleTimeout, limiter)

	return &services{
		Audit:      auditLog,
		AuditStore: auditStore,
		Metrics:    rec,
		Gatherer:   reg,
		Clients:    clients,
		API:        api,
		Limiter:    limiter,
		Cleanup:    cleanup,
	}, nil
}
