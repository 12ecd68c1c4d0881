// internal/domain/models/account.go
package models

// Account is the in-memory view of the signed-in user.
//
// A minimal Account carries only ID and Email (taken from the identity
// claims of the session). Hydration fills Roles, ActiveRole, Name and Phone
// from the persisted profile row.
type Account struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	Name       *string `json:"name"`
	Phone      *string `json:"phone"`
	Roles      []Role  `json:"roles"`
	ActiveRole Role    `json:"active_role"`

	// LegacyRole mirrors ActiveRole once hydrated, for rows that still use
	// the single-role column.
	LegacyRole Role `json:"role,omitempty"`
}

// MinimalAccount builds the account published before hydration completes.
func MinimalAccount(id, email string) *Account {
	return &Account{
		ID:    id,
		Email: email,
		Roles: []Role{},
	}
}

// HasRole reports whether r is in the effective role set.
func (a *Account) HasRole(r Role) bool {
	if a == nil {
		return false
	}
	return ContainsRole(a.EffectiveRoles(), r)
}

// EffectiveRoles is the union of Roles and the legacy single role.
func (a *Account) EffectiveRoles() []Role {
	if a == nil {
		return nil
	}
	return UnionRoles(a.Roles, []Role{a.LegacyRole})
}

// RolesLoaded reports whether any role information is present yet.
func (a *Account) RolesLoaded() bool {
	return a != nil && (len(a.Roles) > 0 || a.LegacyRole != "")
}

// PrimaryRole picks the role used to decide where to send the account:
// the active role, else the first role, else the legacy role.
func (a *Account) PrimaryRole() Role {
	if a == nil {
		return ""
	}
	if a.ActiveRole != "" {
		return a.ActiveRole
	}
	if len(a.Roles) > 0 {
		return a.Roles[0]
	}
	return a.LegacyRole
}

// Clone returns a deep copy so callers can't mutate shared state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Roles = append([]Role(nil), a.Roles...)
	if a.Name != nil {
		n := *a.Name
		c.Name = &n
	}
	if a.Phone != nil {
		p := *a.Phone
		c.Phone = &p
	}
	return &c
}
