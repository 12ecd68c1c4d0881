package models

import "testing"

func TestProfileReconcile(t *testing.T) {
	tests := []struct {
		name       string
		p          *Profile
		wantRoles  []Role
		wantActive Role
	}{
		{"nil row", nil, []Role{}, ""},
		{"legacy tutor", &Profile{Roles: []Role{}, Role: RoleTutor}, []Role{RoleTutor}, RoleTutor},
		{"legacy student nil roles", &Profile{Role: RoleStudent}, []Role{RoleStudent}, RoleStudent},
		{"roles win over legacy", &Profile{Roles: []Role{RoleStudent, RoleTutor}, ActiveRole: RoleTutor, Role: RoleStudent}, []Role{RoleStudent, RoleTutor}, RoleTutor},
		{"empty row", &Profile{}, []Role{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roles, active := tt.p.Reconcile()
			if len(roles) != len(tt.wantRoles) {
				t.Fatalf("roles = %v, want %v", roles, tt.wantRoles)
			}
			for i := range roles {
				if roles[i] != tt.wantRoles[i] {
					t.Errorf("roles[%d] = %q, want %q", i, roles[i], tt.wantRoles[i])
				}
			}
			if active != tt.wantActive {
				t.Errorf("active = %q, want %q", active, tt.wantActive)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"student", RoleStudent, true},
		{"  Tutor ", RoleTutor, true},
		{"admin", "admin", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRole(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseRole(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestAccountEffectiveRoles(t *testing.T) {
	a := &Account{Roles: []Role{RoleStudent}, LegacyRole: RoleTutor}
	got := a.EffectiveRoles()
	if len(got) != 2 || got[0] != RoleStudent || got[1] != RoleTutor {
		t.Errorf("EffectiveRoles = %v", got)
	}
	if !a.HasRole(RoleTutor) {
		t.Error("expected legacy role to count as held")
	}

	var none *Account
	if none.HasRole(RoleStudent) {
		t.Error("nil account holds no roles")
	}
}

func TestAccountPrimaryRole(t *testing.T) {
	if got := (&Account{Roles: []Role{RoleTutor}}).PrimaryRole(); got != RoleTutor {
		t.Errorf("first role: got %q", got)
	}
	if got := (&Account{LegacyRole: RoleStudent}).PrimaryRole(); got != RoleStudent {
		t.Errorf("legacy role: got %q", got)
	}
	if got := (&Account{Roles: []Role{RoleStudent, RoleTutor}, ActiveRole: RoleTutor}).PrimaryRole(); got != RoleTutor {
		t.Errorf("active role: got %q", got)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to HelpRequestStatus
		actor    Role
		want     bool
	}{
		{StatusPending, StatusAccepted, RoleTutor, true},
		{StatusPending, StatusDeclined, RoleTutor, true},
		{StatusPending, StatusAccepted, RoleStudent, false},
		{StatusAccepted, StatusClosed, RoleStudent, true},
		{StatusAccepted, StatusClosed, RoleTutor, false},
		{StatusDeclined, StatusAccepted, RoleTutor, false},
		{StatusClosed, StatusPending, RoleStudent, false},
		{StatusPending, StatusClosed, RoleStudent, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to, tt.actor); got != tt.want {
			t.Errorf("CanTransition(%s, %s, %s) = %v, want %v", tt.from, tt.to, tt.actor, got, tt.want)
		}
	}
}

func TestProfileUpdateFields(t *testing.T) {
	empty := ""
	tutor := RoleTutor
	f := ProfileUpdate{ActiveRole: &tutor, Phone: &empty}.Fields()
	if f["active_role"] != RoleTutor {
		t.Errorf("active_role = %v", f["active_role"])
	}
	if v, ok := f["phone"]; !ok || v != nil {
		t.Errorf("phone should be explicit null, got %v (present=%v)", v, ok)
	}
	if _, ok := f["roles"]; ok {
		t.Error("roles should be omitted when nil")
	}
}

func TestProfileUpdateFields_ClearActiveRole(t *testing.T) {
	none := Role("")
	f := ProfileUpdate{Roles: []Role{}, ActiveRole: &none}.Fields()
	if v, ok := f["active_role"]; !ok || v != nil {
		t.Errorf("active_role should be explicit null, got %v (present=%v)", v, ok)
	}
	if roles, ok := f["roles"].([]Role); !ok || len(roles) != 0 {
		t.Errorf("roles should be an explicit empty list, got %v", f["roles"])
	}
}

func TestProfileStoredRoles(t *testing.T) {
	tests := []struct {
		name string
		p    *Profile
		want []Role
	}{
		{"nil row", nil, []Role{}},
		{"empty row", &Profile{}, []Role{}},
		{"legacy only", &Profile{Role: RoleTutor}, []Role{RoleTutor}},
		{"legacy with empty roles", &Profile{Roles: []Role{}, Role: RoleTutor}, []Role{RoleTutor}},
		{"roles only", &Profile{Roles: []Role{RoleStudent, RoleTutor}}, []Role{RoleStudent, RoleTutor}},
		{"legacy outside roles", &Profile{Roles: []Role{RoleStudent}, Role: RoleTutor}, []Role{RoleStudent, RoleTutor}},
		{"legacy inside roles", &Profile{Roles: []Role{RoleTutor, RoleStudent}, Role: RoleStudent}, []Role{RoleTutor, RoleStudent}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.p.StoredRoles()
			if len(got) != len(tt.want) {
				t.Fatalf("StoredRoles() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("StoredRoles()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
