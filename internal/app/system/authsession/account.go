package authsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/system/provider"
	"github.com/dalemusser/bisontutor/internal/app/system/timeouts"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"go.uber.org/zap"
)

// Login checks the credentials with the provider. It does not change
// state itself: the provider's SIGNED_IN notification does.
func (m *Manager) Login(ctx context.Context, email, password string) (*models.Session, error) {
	if err := m.checkAlive(); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)

	sess, err := m.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		err = classifyLoginError(err)
		m.audit.LoginFailed(ctx, email, err.Error(), errors.Is(err, ErrEmailUnverified))
		m.metrics.Operation("login", "error")
		return nil, err
	}
	m.audit.LoginSucceeded(ctx, sess.User.ID, sess.User.Email)
	m.metrics.Operation("login", "ok")
	return sess, nil
}

// classifyLoginError maps provider rejections onto the error taxonomy.
// Messages mentioning both "email" and "confirm" mean the address is not
// verified yet.
func classifyLoginError(err error) error {
	var pe *provider.Error
	if !errors.As(err, &pe) {
		return err
	}
	msg := strings.ToLower(pe.Message)
	switch {
	case strings.Contains(msg, "email") && strings.Contains(msg, "confirm"):
		return fmt.Errorf("%w: %w", ErrEmailUnverified, err)
	case pe.Code == "invalid_credentials" || pe.Code == "invalid_grant" ||
		strings.Contains(msg, "invalid login credentials"):
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	return err
}

// Logout clears local state at once, then makes a best-effort remote
// sign-out bounded by the sign-out timeout. Remote failures are ignored.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	if !m.alive {
		m.mu.Unlock()
		return
	}
	prev := m.user.Clone()
	m.clearTimerLocked()
	m.clearLocked()
	m.mu.Unlock()

	if prev != nil {
		m.audit.LoggedOut(ctx, prev.ID, prev.Email)
	}
	m.metrics.Operation("logout", "ok")

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.SignOutTimeout)
	defer cancel()
	if err := m.auth.SignOut(sctx); err != nil {
		m.log.Debug("remote sign-out failed; local state already cleared", zap.Error(err))
	}
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Roles    []models.Role
}

// Register validates the form, signs the account up, and makes sure the
// profile rows exist. The first role becomes the active role. Failures to
// create profile rows are logged; the account already exists at that
// point, so they do not fail the call.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (*provider.SignUpResult, error) {
	if err := m.checkAlive(); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(in.Email)
	if err := m.checkDomain(email); err != nil {
		return nil, err
	}
	if len(in.Roles) == 0 {
		return nil, ErrNoRoleSelected
	}
	for _, r := range in.Roles {
		if !r.IsValid() {
			return nil, &RoleError{Role: r, Err: ErrInvalidRole}
		}
	}
	if len(in.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	roles := models.UnionRoles(in.Roles)
	active := roles[0]
	roleNames := make([]string, len(roles))
	for i, r := range roles {
		roleNames[i] = r.String()
	}

	res, err := m.auth.SignUp(ctx, provider.SignUpParams{
		Email:      email,
		Password:   in.Password,
		RedirectTo: m.link("/verify-email"),
		Data: map[string]any{
			"name":        in.Name,
			"roles":       roleNames,
			"active_role": active.String(),
		},
	})
	if err != nil {
		m.metrics.Operation("register", "error")
		return nil, classifySignUpError(err)
	}
	if res == nil || res.User == nil {
		m.metrics.Operation("register", "error")
		return nil, errors.New("failed to create account. Please try again")
	}
	m.audit.Registered(ctx, res.User.ID, email, roles)
	m.metrics.Operation("register", "ok")

	m.ensureProfileRows(ctx, res.User.ID, in.Name, roles, active)
	return res, nil
}

func classifySignUpError(err error) error {
	var pe *provider.Error
	if errors.As(err, &pe) {
		msg := strings.ToLower(pe.Message)
		switch {
		case strings.Contains(msg, "already registered") || pe.Code == "user_already_exists":
			return fmt.Errorf("%w: %w", ErrAlreadyRegistered, err)
		case pe.Code == "weak_password":
			return fmt.Errorf("%w: %w", ErrWeakPassword, err)
		}
	}
	return err
}

// ensureProfileRows gives backend triggers a moment to create the rows of
// a new account, then creates whatever is still missing.
func (m *Manager) ensureProfileRows(ctx context.Context, userID, name string, roles []models.Role, active models.Role) {
	if err := sleepCtx(ctx, m.profileTriggerDelay()); err != nil {
		return
	}

	existing, err := m.rows.GetProfile(ctx, userID)
	if err != nil {
		m.log.Debug("profile check after sign-up failed", zap.String("user_id", userID), zap.Error(err))
	}
	if existing == nil {
		row := models.Profile{
			ID:         userID,
			Role:       active,
			Roles:      roles,
			ActiveRole: active,
		}
		if name != "" {
			row.Name = &name
		}
		switch err := m.rows.InsertProfile(ctx, row); {
		case err == nil:
			m.audit.ProfileRowCreated(ctx, userID, "profiles")
		case provider.IsDuplicate(err):
		default:
			m.log.Warn("profile creation after sign-up failed", zap.String("user_id", userID), zap.Error(err))
			m.audit.ProfileRowFailed(ctx, userID, "profiles", err)
		}
	}

	if !models.ContainsRole(roles, models.RoleTutor) {
		return
	}
	if err := sleepCtx(ctx, m.tutorTriggerDelay()); err != nil {
		return
	}
	tp, err := m.rows.GetTutorProfile(ctx, userID)
	if err != nil && !provider.IsNotFound(err) {
		m.log.Debug("tutor profile check after sign-up failed", zap.String("user_id", userID), zap.Error(err))
	}
	if tp != nil {
		return
	}
	switch err := m.rows.InsertTutorProfile(ctx, models.NewTutorProfile(userID)); {
	case err == nil:
		m.audit.ProfileRowCreated(ctx, userID, "tutor_profiles")
	case provider.IsDuplicate(err):
	default:
		m.log.Warn("tutor profile creation after sign-up failed", zap.String("user_id", userID), zap.Error(err))
		m.audit.ProfileRowFailed(ctx, userID, "tutor_profiles", err)
	}
}

// ResetPassword asks the provider to mail a reset link that lands on
// /reset-password.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	if err := m.checkAlive(); err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if err := m.checkDomain(email); err != nil {
		return err
	}
	if err := m.auth.ResetPasswordForEmail(ctx, email, m.link("/reset-password")); err != nil {
		m.metrics.Operation("reset_password", "error")
		return err
	}
	m.audit.PasswordResetRequested(ctx, email)
	m.metrics.Operation("reset_password", "ok")
	return nil
}

// UpdatePassword sets a new password for the current (usually recovery)
// session, then signs out so the account logs in fresh.
func (m *Manager) UpdatePassword(ctx context.Context, password string) error {
	if err := m.checkAlive(); err != nil {
		return err
	}
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	sess := m.sessionSnapshot()
	if sess == nil {
		return ErrNoActiveSession
	}

	ident, err := m.auth.UpdatePassword(ctx, password)
	if errors.Is(err, provider.ErrNoSession) {
		return ErrNoActiveSession
	}
	if err != nil {
		m.metrics.Operation("update_password", "error")
		return classifySignUpError(err)
	}
	email := sess.User.Email
	if ident != nil && ident.Email != "" {
		email = ident.Email
	}
	m.audit.PasswordUpdated(ctx, sess.User.ID, email)
	m.metrics.Operation("update_password", "ok")

	m.Logout(ctx)
	return nil
}

// VerifyEmail redeems the token hash of a sign-up confirmation link. The
// resulting sign-in reaches state through the change notification.
func (m *Manager) VerifyEmail(ctx context.Context, tokenHash string) (*models.Session, error) {
	if err := m.checkAlive(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(tokenHash) == "" {
		return nil, errors.New("verification link is missing its token")
	}
	sess, err := m.auth.VerifyOTP(ctx, tokenHash, provider.OTPTypeEmail)
	if err != nil {
		m.metrics.Operation("verify_email", "error")
		return nil, err
	}
	m.audit.EmailVerified(ctx, sess.User.ID, sess.User.Email)
	m.metrics.Operation("verify_email", "ok")
	return sess, nil
}

// AdoptRecoverySession installs the tokens of a password-reset link. The
// provider answers with a PASSWORD_RECOVERY notification.
func (m *Manager) AdoptRecoverySession(ctx context.Context, accessToken, refreshToken string) (*models.Session, error) {
	if err := m.checkAlive(); err != nil {
		return nil, err
	}
	if accessToken == "" {
		return nil, ErrNoActiveSession
	}
	sess, err := m.auth.SetSession(ctx, accessToken, refreshToken)
	if err != nil {
		m.metrics.Operation("adopt_recovery", "error")
		return nil, fmt.Errorf("%w: %w", ErrNoActiveSession, err)
	}
	m.metrics.Operation("adopt_recovery", "ok")
	return sess, nil
}

func (m *Manager) checkDomain(email string) error {
	domain := strings.ToLower(strings.TrimPrefix(m.cfg.Domain, "@"))
	if domain == "" {
		return nil
	}
	if !strings.HasSuffix(strings.ToLower(email), "@"+domain) {
		return &DomainError{Domain: domain}
	}
	return nil
}

func (m *Manager) link(path string) string {
	return strings.TrimRight(m.cfg.BaseURL, "/") + path
}

func (m *Manager) profileTriggerDelay() time.Duration {
	if m.cfg.ProfileTriggerDelay < 0 {
		return 0
	}
	if m.cfg.ProfileTriggerDelay == 0 {
		return timeouts.TriggerDelay()
	}
	return m.cfg.ProfileTriggerDelay
}

func (m *Manager) tutorTriggerDelay() time.Duration {
	if m.cfg.TutorTriggerDelay < 0 {
		return 0
	}
	if m.cfg.TutorTriggerDelay == 0 {
		return timeouts.TriggerDelay() * 3 / 5
	}
	return m.cfg.TutorTriggerDelay
}
