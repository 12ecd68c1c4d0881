package authsession

import (
	"context"
	"fmt"

	"github.com/dalemusser/bisontutor/internal/domain/models"
)

// UpdateProfile writes the name and phone of the signed-in account and
// re-reads the profile so State reflects the write. Nil fields are left
// alone.
func (m *Manager) UpdateProfile(ctx context.Context, name, phone *string) error {
	user, _, err := m.current()
	if err != nil {
		return err
	}
	if name == nil && phone == nil {
		return nil
	}
	if err := m.rows.UpdateProfile(ctx, user.ID, models.ProfileUpdate{Name: name, Phone: phone}); err != nil {
		m.metrics.Operation("update_profile", "error")
		return fmt.Errorf("failed to update profile: %w", err)
	}
	m.metrics.Operation("update_profile", "ok")
	m.RefreshProfile(ctx)
	return nil
}

// TutorProfile returns the tutor row of the signed-in account, or an empty
// row when none exists yet.
func (m *Manager) TutorProfile(ctx context.Context) (models.TutorProfile, error) {
	user, _, err := m.current()
	if err != nil {
		return models.TutorProfile{}, err
	}
	tp, err := m.rows.GetTutorProfile(ctx, user.ID)
	if err != nil {
		return models.TutorProfile{}, fmt.Errorf("failed to load tutor profile: %w", err)
	}
	if tp == nil {
		return models.NewTutorProfile(user.ID), nil
	}
	return *tp, nil
}

// SaveTutorProfile upserts the tutor row of the signed-in account. The
// account must hold the tutor role. The row id is always the account id.
func (m *Manager) SaveTutorProfile(ctx context.Context, tp models.TutorProfile) error {
	user, _, err := m.current()
	if err != nil {
		return err
	}
	if user.RolesLoaded() && !user.HasRole(models.RoleTutor) {
		return &RoleError{Role: models.RoleTutor, Err: ErrRoleNotHeld}
	}
	tp.ID = user.ID
	if tp.Subjects == nil {
		tp.Subjects = []string{}
	}
	if tp.Availability == nil {
		tp.Availability = []string{}
	}
	if err := m.rows.UpsertTutorProfile(ctx, tp); err != nil {
		m.metrics.Operation("save_tutor_profile", "error")
		return fmt.Errorf("failed to save tutor profile: %w", err)
	}
	m.metrics.Operation("save_tutor_profile", "ok")
	m.RefreshProfile(ctx)
	return nil
}
