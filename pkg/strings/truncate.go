// Package strings holds text helpers for terminal and error output.
package strings

import (
	"strings"
)

// DefaultCellWidth is the widest a table cell is rendered.
const DefaultCellWidth = 60

// minWidth leaves room for one character plus "...".
const minWidth = 4

// SingleLine collapses every run of whitespace, newlines included, to one
// space and trims the ends.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns SingleLine(s) cut to at most width runes. A cut string
// ends in "...". Widths below 4 are treated as 4.
func Truncate(s string, width int) string {
	width = max(width, minWidth)

	s = SingleLine(s)
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}
