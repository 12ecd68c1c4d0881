// internal/domain/models/profile.go
package models

// Profile is a row of the profiles collection.
//
// Older rows carry only Role; newer rows carry Roles and ActiveRole.
// Reconcile turns either shape into the roles/active role pair.
type Profile struct {
	ID         string  `bson:"_id" json:"id"`
	Role       Role    `bson:"role,omitempty" json:"role,omitempty"`
	Roles      []Role  `bson:"roles,omitempty" json:"roles"`
	ActiveRole Role    `bson:"active_role,omitempty" json:"active_role,omitempty"`
	Name       *string `bson:"name,omitempty" json:"name"`
	Phone      *string `bson:"phone,omitempty" json:"phone"`
}

// Reconcile returns the effective roles and active role of the row. When
// Roles is empty but the legacy Role is set, the legacy role becomes both.
func (p *Profile) Reconcile() ([]Role, Role) {
	if p == nil {
		return []Role{}, ""
	}
	roles := append([]Role{}, p.Roles...)
	active := p.ActiveRole
	if len(roles) == 0 && p.Role != "" {
		roles = []Role{p.Role}
		active = p.Role
	}
	return roles, active
}

// StoredRoles is the role list used as the base for a read-modify-write:
// the union of Roles and the legacy role, so a row written before Roles
// existed (or with Roles stored as an empty list) keeps its legacy role.
func (p *Profile) StoredRoles() []Role {
	if p == nil {
		return []Role{}
	}
	return UnionRoles(p.Roles, []Role{p.Role})
}

// ProfileUpdate lists the profile columns a write touches. Nil pointers are
// left alone; a pointer to "" clears a nullable text column.
type ProfileUpdate struct {
	Roles      []Role
	ActiveRole *Role
	Name       *string
	Phone      *string
}

// Fields renders the update as column -> value.
func (u ProfileUpdate) Fields() map[string]any {
	out := map[string]any{}
	if u.Roles != nil {
		out["roles"] = u.Roles
	}
	if u.ActiveRole != nil {
		if *u.ActiveRole == "" {
			out["active_role"] = nil
		} else {
			out["active_role"] = *u.ActiveRole
		}
	}
	if u.Name != nil {
		out["name"] = *u.Name
	}
	if u.Phone != nil {
		if *u.Phone == "" {
			out["phone"] = nil
		} else {
			out["phone"] = *u.Phone
		}
	}
	return out
}

// TutorProfile is a row of the tutor_profiles collection.
type TutorProfile struct {
	ID             string   `bson:"_id" json:"id"`
	Bio            string   `bson:"bio" json:"bio"`
	Subjects       []string `bson:"subjects" json:"subjects"`
	Availability   []string `bson:"availability" json:"availability"`
	SchedulingLink *string  `bson:"scheduling_link,omitempty" json:"scheduling_link"`
}

// NewTutorProfile is the empty row created when the tutor role is added.
func NewTutorProfile(id string) TutorProfile {
	return TutorProfile{
		ID:           id,
		Subjects:     []string{},
		Availability: []string{},
	}
}
