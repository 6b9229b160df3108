// Package htmlsanitize cleans user-supplied HTML (topic descriptions) and
// strips markup from plain-text fields.
package htmlsanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	once   sync.Once
	rich   *bluemonday.Policy
	strict *bluemonday.Policy
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	once.Do(func() {
		rich = bluemonday.UGCPolicy()
		rich.AllowAttrs("class").OnElements("table", "tr", "td", "th")
		strict = bluemonday.StrictPolicy()
	})
	return rich, strict
}

// Sanitize keeps formatting, lists, tables and safe links, and removes
// scripts, event handlers and javascript: URLs.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	p, _ := policies()
	return p.Sanitize(s)
}

// PlainText removes every tag and trims surrounding whitespace.
func PlainText(s string) string {
	_, p := policies()
	return strings.TrimSpace(p.Sanitize(s))
}

// IsPlainText reports whether s contains no markup at all.
func IsPlainText(s string) bool {
	return !strings.ContainsAny(s, "<>")
}
