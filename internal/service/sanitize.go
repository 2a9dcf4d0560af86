package service

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// textPolicy strips every tag; posts and comments are plain text.
var textPolicy = bluemonday.StrictPolicy()

// cleanText strips markup from user text and returns it with its length in
// runes. The policy escapes what it keeps, so the result is unescaped back to
// plain text before it is measured and stored.
func cleanText(s string) (string, int) {
	out := strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
	return out, utf8.RuneCountInString(out)
}
