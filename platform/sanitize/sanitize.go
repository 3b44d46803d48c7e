// Package sanitize cleans user-entered text before it reaches the report
// service, where it ends up inside generated HTML and office documents.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
	entities     = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", `"`, "&#39;", "'")
)

// StripHTML removes markup from s. Entities are decoded and the result is
// stripped again so encoded tags do not survive.
func StripHTML(s string) string {
	out := tagPattern.ReplaceAllString(s, "")
	out = entities.Replace(out)
	return tagPattern.ReplaceAllString(out, "")
}

// Line returns s as a single line of plain text: markup removed, runs of
// whitespace collapsed and the ends trimmed.
func Line(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(StripHTML(s), " "))
}
