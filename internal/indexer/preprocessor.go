package indexer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes extracted text for indexing: control characters become
// spaces and runs of whitespace collapse to one space.
func Preprocess(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '�' {
			return ' '
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}
