package authsession

import (
	"context"

	"github.com/dalemusser/bisontutor/internal/domain/models"
)

// Auditor records security-relevant events. *auditlog.Logger satisfies it.
type Auditor interface {
	LoginSucceeded(ctx context.Context, userID, email string)
	LoginFailed(ctx context.Context, email, reason string, unverified bool)
	LoggedOut(ctx context.Context, userID, email string)
	Registered(ctx context.Context, userID, email string, roles []models.Role)
	PasswordResetRequested(ctx context.Context, email string)
	PasswordUpdated(ctx context.Context, userID, email string)
	EmailVerified(ctx context.Context, userID, email string)
	RoleSwitched(ctx context.Context, userID string, from, to models.Role)
	RoleAdded(ctx context.Context, userID string, role models.Role, roles []models.Role)
	RoleAddRolledBack(ctx context.Context, userID string, role models.Role, cause error)
	RoleRollbackFailed(ctx context.Context, userID string, role models.Role, err error)
	ProfileRowCreated(ctx context.Context, userID, table string)
	ProfileRowFailed(ctx context.Context, userID, table string, err error)
}

// Metrics counts state transitions and operation outcomes.
// *metrics.Recorder satisfies it.
type Metrics interface {
	StateChanged(status string)
	Operation(op, result string)
	Hydration(result string)
	Compensation(result string)
}

type nopAuditor struct{}

func (nopAuditor) LoginSucceeded(context.Context, string, string) {}
func (nopAuditor) LoginFailed(context.Context, string, string, bool) {}
func (nopAuditor) LoggedOut(context.Context, string, string) {}
func (nopAuditor) Registered(context.Context, string, string, []models.Role) {}
func (nopAuditor) PasswordResetRequested(context.Context, string) {}
func (nopAuditor) PasswordUpdated(context.Context, string, string) {}
func (nopAuditor) EmailVerified(context.Context, string, string) {}
func (nopAuditor) RoleSwitched(context.Context, string, models.Role, models.Role) {}
func (nopAuditor) RoleAdded(context.Context, string, models.Role, []models.Role) {}
func (nopAuditor) RoleAddRolledBack(context.Context, string, models.Role, error) {}
func (nopAuditor) RoleRollbackFailed(context.Context, string, models.Role, error) {}
func (nopAuditor) ProfileRowCreated(context.Context, string, string) {}
func (nopAuditor) ProfileRowFailed(context.Context, string, string, error) {}

type nopMetrics struct{}

func (nopMetrics) StateChanged(string) {}
func (nopMetrics) Operation(string, string) {}
func (nopMetrics) Hydration(string) {}
func (nopMetrics) Compensation(string) {}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
