package authsession

import (
	"context"
	"fmt"

	"github.com/dalemusser/bisontutor/internal/app/system/provider"
	"github.com/dalemusser/bisontutor/internal/app/system/timeouts"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"go.uber.org/zap"
)

// SwitchRole makes role the active role. The persisted role set is re-read
// first so a role removed on another device cannot be re-activated here.
// Local state changes only after the write succeeds.
func (m *Manager) SwitchRole(ctx context.Context, role models.Role) error {
	user, gen, err := m.current()
	if err != nil {
		return err
	}
	if !role.IsValid() {
		return &RoleError{Role: role, Err: ErrInvalidRole}
	}
	if !models.ContainsRole(user.Roles, role) {
		return &RoleError{Role: role, Err: ErrRoleNotHeld}
	}

	p, err := m.rows.GetProfile(ctx, user.ID)
	if err != nil {
		m.metrics.Operation("switch_role", "error")
		return fmt.Errorf("failed to check profile: %w", err)
	}
	if p == nil {
		m.metrics.Operation("switch_role", "error")
		return ErrProfileNotFound
	}
	persisted, _ := p.Reconcile()
	if !models.ContainsRole(persisted, role) {
		m.metrics.Operation("switch_role", "error")
		return &RoleError{Role: role, Err: ErrRoleNotHeld}
	}

	if err := m.rows.UpdateProfile(ctx, user.ID, models.ProfileUpdate{ActiveRole: &role}); err != nil {
		m.metrics.Operation("switch_role", "error")
		return fmt.Errorf("failed to switch role: %w", err)
	}

	m.mu.Lock()
	if m.alive && m.gen == gen && m.user != nil && m.user.ID == user.ID {
		m.user.Roles = persisted
		m.user.ActiveRole = role
		m.user.LegacyRole = role
		m.notifyLocked()
	}
	m.mu.Unlock()

	m.audit.RoleSwitched(ctx, user.ID, user.ActiveRole, role)
	m.metrics.Operation("switch_role", "ok")
	return nil
}

// AddRole grants role to the signed-in account and makes it active.
//
// Steps: re-read the persisted roles, write the union with role, verify
// the write, and for the tutor role create the tutor profile row. If the
// tutor row cannot be created the role write is compensated (see
// compensateAddRole) before the error is returned.
func (m *Manager) AddRole(ctx context.Context, role models.Role) error {
	user, _, err := m.current()
	if err != nil {
		return err
	}
	if !role.IsValid() {
		return &RoleError{Role: role, Err: ErrInvalidRole}
	}
	if user.HasRole(role) {
		return &RoleError{Role: role, Err: ErrRoleAlreadyHeld}
	}

	err = m.addRole(ctx, user, role)
	m.metrics.Operation("add_role", result(err))
	return err
}

func (m *Manager) addRole(ctx context.Context, user *models.Account, role models.Role) error {
	p, err := m.rows.GetProfile(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to check profile: %w", err)
	}
	if p == nil {
		return ErrProfileNotFound
	}

	existing := p.StoredRoles()
	if models.ContainsRole(existing, role) {
		return &RoleError{Role: role, Err: ErrRoleAlreadyHeld}
	}
	updated := append(append([]models.Role{}, existing...), role)

	if err := m.rows.UpdateProfile(ctx, user.ID, models.ProfileUpdate{
		Roles:      updated,
		ActiveRole: &role,
	}); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	check, err := m.rows.GetProfile(ctx, user.ID)
	if err != nil || check == nil || !models.ContainsRole(check.StoredRoles(), role) {
		if err == nil {
			err = ErrProfileNotFound
		}
		return fmt.Errorf("failed to verify profile update: %w", err)
	}

	if role == models.RoleTutor {
		if err := m.ensureTutorProfile(ctx, user.ID); err != nil {
			m.compensateAddRole(ctx, user.ID, role, p.Roles, p.ActiveRole, err)
			return fmt.Errorf("failed to create tutor profile: %w", err)
		}
	}

	m.audit.RoleAdded(ctx, user.ID, role, updated)
	m.RefreshProfile(ctx)
	return nil
}

// ensureTutorProfile creates the tutor_profiles row unless it exists.
func (m *Manager) ensureTutorProfile(ctx context.Context, userID string) error {
	tp, err := m.rows.GetTutorProfile(ctx, userID)
	if err != nil && !provider.IsNotFound(err) {
		return err
	}
	if tp != nil {
		return nil
	}
	err = m.rows.InsertTutorProfile(ctx, models.NewTutorProfile(userID))
	if provider.IsDuplicate(err) {
		return nil
	}
	return err
}

// compensateAddRole restores the roles and active_role columns exactly as
// they were read before AddRole wrote; a legacy row gets its empty or
// missing roles back, so its legacy role stays the effective one. The row store offers no multi-row
// transaction, so this is best effort: a failed rollback is logged and
// audited, never returned.
func (m *Manager) compensateAddRole(ctx context.Context, userID string, role models.Role, prevRoles []models.Role, prevActive models.Role, cause error) {
	m.log.Warn("role add compensation",
		zap.String("user_id", userID),
		zap.String("role", role.String()),
		zap.Error(cause))

	rctx, cancel := timeouts.WithTimeout(context.WithoutCancel(ctx), timeouts.Short(), m.log, "role add compensation")
	defer cancel()

	upd := models.ProfileUpdate{Roles: append([]models.Role{}, prevRoles...), ActiveRole: &prevActive}
	if err := m.rows.UpdateProfile(rctx, userID, upd); err != nil {
		m.log.Error("rollback failed",
			zap.String("user_id", userID),
			zap.String("role", role.String()),
			zap.Error(err))
		m.audit.RoleRollbackFailed(ctx, userID, role, err)
		m.metrics.Compensation("failed")
		return
	}
	m.audit.RoleAddRolledBack(ctx, userID, role, cause)
	m.metrics.Compensation("ok")
}
