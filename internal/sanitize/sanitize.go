// Package sanitize strips markup from user-supplied text before it is placed
// into PDFs or email bodies.
package sanitize

import (
	"fmt"
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes all HTML from s, unescapes entities, drops control characters
// and collapses surrounding whitespace.
func Text(s string) string {
	if s == "" {
		return ""
	}
	cleaned := html.UnescapeString(strict.Sanitize(s))
	cleaned = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, cleaned)
	return strings.TrimSpace(cleaned)
}

// Value stringifies v and cleans it with Text. nil becomes "".
func Value(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return Text(t)
	case *string:
		if t == nil {
			return ""
		}
		return Text(*t)
	case fmt.Stringer:
		return Text(t.String())
	}
	return Text(fmt.Sprint(v))
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
