package inputval

import "testing"

func TestValidate(t *testing.T) {
	type TestInput struct {
		Name  string `validate:"required,max=10" label:"Full name"`
		Email string `validate:"required,email" label:"Email address"`
	}

	tests := []struct {
		name       string
		input      TestInput
		wantErrors bool
		wantFirst  string
	}{
		{"valid input", TestInput{Name: "John", Email: "john@example.com"}, false, ""},
		{"missing name", TestInput{Name: "", Email: "john@example.com"}, true, "Full name is required."},
		{"name too long", TestInput{Name: "VeryLongNameThatExceedsLimit", Email: "john@example.com"}, true, "Full name must be at most 10 characters."},
		{"invalid email", TestInput{Name: "John", Email: "not-an-email"}, true, "A valid email address is required."},
		{"missing both", TestInput{}, true, "Full name is required."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.input)
			if result.HasErrors() != tt.wantErrors {
				t.Errorf("HasErrors = %v, want %v", result.HasErrors(), tt.wantErrors)
			}
			if tt.wantErrors && result.First() != tt.wantFirst {
				t.Errorf("First() = %q, want %q", result.First(), tt.wantFirst)
			}
		})
	}
}

func TestValidate_CustomRules(t *testing.T) {
	type RoleInput struct {
		Role string `validate:"required,role" label:"Role"`
	}
	type StatusInput struct {
		Status string `validate:"required,helpstatus" label:"Status"`
	}
	type LinkInput struct {
		Link string `validate:"omitempty,httpurl" label:"Scheduling link"`
	}

	tests := []struct {
		name  string
		input any
		valid bool
	}{
		{"tutor role", RoleInput{Role: "tutor"}, true},
		{"role any case", RoleInput{Role: " Student "}, true},
		{"unknown role", RoleInput{Role: "admin"}, false},
		{"accepted status", StatusInput{Status: "accepted"}, true},
		{"unknown status", StatusInput{Status: "archived"}, false},
		{"empty link", LinkInput{}, true},
		{"https link", LinkInput{Link: "https://calendly.com/x"}, true},
		{"bare link", LinkInput{Link: "calendly.com/x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.input)
			if result.HasErrors() == tt.valid {
				t.Errorf("Validate(%+v) errors = %v, want valid=%v", tt.input, result.Errors, tt.valid)
			}
		})
	}
}

func TestValidate_JSONNameLabel(t *testing.T) {
	type Body struct {
		TutorID string `json:"tutor_id" validate:"required"`
	}
	if got := Validate(Body{}).First(); got != "tutor_id is required." {
		t.Errorf("First() = %q", got)
	}
}

func TestResult_All(t *testing.T) {
	if r := (&Result{}); r.All() != "" {
		t.Errorf("All() = %q, want empty", r.All())
	}
	r := &Result{Errors: []FieldError{{Message: "Error 1"}, {Message: "Error 2"}}}
	if want := "Error 1; Error 2"; r.All() != want {
		t.Errorf("All() = %q, want %q", r.All(), want)
	}
	if r.First() != "Error 1" {
		t.Errorf("First() = %q", r.First())
	}
}
