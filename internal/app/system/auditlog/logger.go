// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/bisontutor/internal/app/store/audit"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (login, logout, password, verification).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Role controls logging for role events (switch, add, compensation).
	// Same values as Auth.
	Role string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. store may be nil, in which case
// "all" and "db" settings only reach zap.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

type requestMetaKey struct{}

type requestMeta struct {
	ip        string
	userAgent string
}

// WithRequest attaches the client IP and user agent of r to ctx so events
// logged further down the call chain carry them.
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, requestMeta{
		ip:        ClientIP(r),
		userAgent: r.UserAgent(),
	})
}

// ClientIP extracts the client IP from the request.
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func metaFrom(ctx context.Context) requestMeta {
	m, _ := ctx.Value(requestMetaKey{}).(requestMeta)
	return m
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Logging destination is controlled by config: "all", "db", "log", or "off".
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryRole:
		setting = l.config.Role
	default:
		setting = "all"
	}
	if setting == "" {
		setting = "all"
	}
	if setting == "off" {
		return
	}

	meta := metaFrom(ctx)
	if event.IP == "" {
		event.IP = meta.ip
	}
	if event.UserAgent == "" {
		event.UserAgent = meta.userAgent
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// LoginSucceeded logs a successful password sign-in.
func (l *Logger) LoginSucceeded(ctx context.Context, userID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    userID,
		Email:     email,
		Success:   true,
	})
}

// LoginFailed logs a rejected sign-in. unverified marks rejections caused by
// an unconfirmed email address.
func (l *Logger) LoginFailed(ctx context.Context, email, reason string, unverified bool) {
	eventType := audit.EventLoginFailed
	if unverified {
		eventType = audit.EventLoginFailedUnverified
	}
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		Email:         email,
		Success:       false,
		FailureReason: reason,
	})
}

// LoginRateLimited logs a sign-in or reset attempt refused by the throttle.
func (l *Logger) LoginRateLimited(ctx context.Context, email, limitType string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedRateLimit,
		Email:         email,
		Success:       false,
		FailureReason: "rate limit exceeded",
		Details: map[string]string{
			"limit_type": limitType,
		},
	})
}

// LoggedOut logs an explicit logout.
func (l *Logger) LoggedOut(ctx context.Context, userID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    userID,
		Email:     email,
		Success:   true,
	})
}

// Registered logs a completed provider sign-up.
func (l *Logger) Registered(ctx context.Context, userID, email string, roles []models.Role) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventRegistered,
		UserID:    userID,
		Email:     email,
		Success:   true,
		Details: map[string]string{
			"roles": joinRoles(roles),
		},
	})
}

// PasswordResetRequested logs a reset link request.
func (l *Logger) PasswordResetRequested(ctx context.Context, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventPasswordResetRequested,
		Email:     email,
		Success:   true,
	})
}

// PasswordUpdated logs a password change.
func (l *Logger) PasswordUpdated(ctx context.Context, userID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventPasswordUpdated,
		UserID:    userID,
		Email:     email,
		Success:   true,
	})
}

// EmailVerified logs a confirmed email address.
func (l *Logger) EmailVerified(ctx context.Context, userID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventEmailVerified,
		UserID:    userID,
		Email:     email,
		Success:   true,
	})
}

// --- Role Events ---

// RoleSwitched logs a change of active role.
func (l *Logger) RoleSwitched(ctx context.Context, userID string, from, to models.Role) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryRole,
		EventType: audit.EventRoleSwitched,
		UserID:    userID,
		Success:   true,
		Details: map[string]string{
			"from": from.String(),
			"to":   to.String(),
		},
	})
}

// RoleAdded logs a role granted to an account.
func (l *Logger) RoleAdded(ctx context.Context, userID string, role models.Role, roles []models.Role) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryRole,
		EventType: audit.EventRoleAdded,
		UserID:    userID,
		Success:   true,
		Details: map[string]string{
			"role":  role.String(),
			"roles": joinRoles(roles),
		},
	})
}

// RoleAddRolledBack logs a compensating write that restored the previous
// role set after a failed role add.
func (l *Logger) RoleAddRolledBack(ctx context.Context, userID string, role models.Role, cause error) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryRole,
		EventType:     audit.EventRoleAddRolledBack,
		UserID:        userID,
		Success:       false,
		FailureReason: errString(cause),
		Details: map[string]string{
			"role": role.String(),
		},
	})
}

// RoleRollbackFailed logs a compensating write that itself failed.
func (l *Logger) RoleRollbackFailed(ctx context.Context, userID string, role models.Role, err error) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryRole,
		EventType:     audit.EventRoleRollbackFailed,
		UserID:        userID,
		Success:       false,
		FailureReason: errString(err),
		Details: map[string]string{
			"role": role.String(),
		},
	})
}

// ProfileRowCreated logs a profile row created by the client after sign-up
// or role add. table is "profiles" or "tutor_profiles".
func (l *Logger) ProfileRowCreated(ctx context.Context, userID, table string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryRole,
		EventType: audit.EventProfileRowCreated,
		UserID:    userID,
		Success:   true,
		Details: map[string]string{
			"table": table,
		},
	})
}

// ProfileRowFailed logs a profile row that could not be created.
func (l *Logger) ProfileRowFailed(ctx context.Context, userID, table string, err error) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryRole,
		EventType:     audit.EventProfileRowFailed,
		UserID:        userID,
		Success:       false,
		FailureReason: errString(err),
		Details: map[string]string{
			"table": table,
		},
	})
}

func joinRoles(roles []models.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
