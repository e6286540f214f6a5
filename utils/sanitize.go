package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeText strips every HTML element from user-supplied text and
// returns it as plain text. Script and style bodies are dropped along with
// their tags; entities the policy escaped are decoded again, so output
// layers escape it once.
func SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}
