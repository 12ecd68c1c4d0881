package htmlsanitize_test

import (
	"strings"
	"testing"

	"github.com/dalemusser/bisontutor/internal/app/system/htmlsanitize"
)

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "Need help with integrals", "Need help with integrals"},
		{"ampersand kept literal", "Calc I & II", "Calc I & II"},
		{"tags stripped", "<b>Linear</b> algebra", "Linear algebra"},
		{"script dropped", "hi<script>alert(1)</script>", "hi"},
		{"trimmed", "  spaced  ", "spaced"},
		{"comparison kept", "5 < 10", "5 < 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.Text(tt.input); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestText_RemovesDangerousAttributes(t *testing.T) {
	tests := []string{
		`<a href="javascript:alert(1)">office hours</a>`,
		`<img src=x onerror="alert(1)">`,
		`<div onclick="steal()">click</div>`,
	}
	for _, in := range tests {
		got := htmlsanitize.Text(in)
		for _, bad := range []string{"javascript:", "onerror", "onclick", "<"} {
			if strings.Contains(got, bad) {
				t.Errorf("Text(%q) = %q, still contains %q", in, got, bad)
			}
		}
	}
}
