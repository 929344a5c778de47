package chat

import (
	"regexp"
	"strings"
)

var (
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	controlPattern = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// DefaultSanitizer strips HTML-like tags and control characters from user
// input. Questions travel to the backend and back into rendered chat
// bubbles, so markup is removed rather than escaped.
type DefaultSanitizer struct{}

// Sanitize implements Sanitizer.
func (DefaultSanitizer) Sanitize(raw string) string {
	out := tagPattern.ReplaceAllString(raw, "")
	out = controlPattern.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}
