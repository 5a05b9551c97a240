package chunker

import "strings"

// Clean normalizes extracted text: every run of Unicode whitespace, newlines
// included, collapses to a single space and the result is trimmed.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
