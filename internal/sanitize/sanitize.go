// Package sanitize strips markdown so synthesized speech does not read
// formatting characters aloud.
package sanitize

import (
	"regexp"
	"strings"
)

// Passes run in a fixed order: fenced code before inline code, links before
// images, emphasis before whitespace collapse. Later passes assume earlier
// syntax is already gone.
var passes = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile("(?s)```.*?```"), ""},
	{regexp.MustCompile("`[^`]*`"), ""},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`), "$1"},
	{regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`), ""},
	{regexp.MustCompile(`(?m)^#+\s+`), ""},
	{regexp.MustCompile(`\*\*([^*]+)\*\*`), "$1"},
	{regexp.MustCompile(`\*([^*]+)\*`), "$1"},
	{regexp.MustCompile(`__([^_]+)__`), "$1"},
	{regexp.MustCompile(`_([^_]+)_`), "$1"},
	{regexp.MustCompile(`(?m)^[*\-+]\s+`), ""},
	{regexp.MustCompile(`(?m)^>\s+`), ""},
	{regexp.MustCompile(`\s+`), " "},
}

// Clean removes markdown formatting from text destined for speech synthesis.
// Idempotent: cleaning cleaned text is a no-op.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	for _, pass := range passes {
		text = pass.pattern.ReplaceAllString(text, pass.replacement)
	}
	return strings.TrimSpace(text)
}
