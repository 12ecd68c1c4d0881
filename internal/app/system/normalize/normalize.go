// internal/app/system/normalize/normalize.go
package normalize

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// Email trims and lowercases an address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding space and collapses inner runs of whitespace.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Role trims and lowercases a role name.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Status trims and lowercases a help-request status.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a query value and keeps its case.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// Phone trims a phone number; an empty result means "clear".
func Phone(s string) string {
	return strings.TrimSpace(s)
}

// List trims every entry, drops empties and drops entries that fold to
// the same key as an earlier one ("Calculus" and "calculus ").
func List(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		it = Name(it)
		if it == "" {
			continue
		}
		key := text.Fold(it)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}
