// Package sanitize cleans user-supplied scalar input before it reaches the backend or a page.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// String trims s, strips all HTML tags and entity-encodes the remainder.
// Passwords and file contents must not be passed through it.
func String(s string) string {
	return strings.TrimSpace(strict.Sanitize(strings.TrimSpace(s)))
}

// Strings applies String to every element of ss, dropping entries that become empty.
func Strings(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if v := String(s); v != "" {
			out = append(out, v)
		}
	}
	return out
}
