package textutil

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var plainTextPolicy = bluemonday.StrictPolicy()

// PlainText strips every HTML element from value and collapses whitespace. Entities are
// decoded so "Q&A" survives a round trip instead of turning into "Q&amp;A".
func PlainText(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return CollapseSpace(html.UnescapeString(plainTextPolicy.Sanitize(value)))
}

// CollapseSpace trims value and replaces every whitespace run with a single space.
func CollapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// Truncate cuts value to at most limit runes. A non-positive limit returns value unchanged.
func Truncate(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit]))
}
