// Package query splits free-text search input into quoted, negated, prefix and
// punctuated terms for backend query construction.
package query

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hyperjump/mitsukeru/internal/models"
)

var (
	tokenRe = regexp.MustCompile(`-?"[^"]+"|\S+`)

	// punctuatedRe matches punctuation joined on both sides by letters or digits
	// ("don't", "co-op", "v1.2").
	punctuatedRe = regexp.MustCompile(`^[\pL\pN]+(?:[^\pL\pN\s]+[\pL\pN]+)+$`)

	smartQuotes = strings.NewReplacer(
		"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
		"‘", "'", "’", "'", "‚", "'", "‛", "'",
	)

	// syntaxStripper removes characters that carry meaning in backend query syntax.
	syntaxStripper = strings.NewReplacer(
		"[", " ", "]", " ", "{", " ", "}", " ", "(", " ", ")", " ",
		"*", " ", "+", " ", "?", " ", ".", " ", ",", " ", `\`, " ",
		"^", " ", "$", " ", "|", " ", "#", " ", `"`, " ",
	)
)

// Segment classifies each whitespace-separated token of text. Double-quoted
// spans, optionally preceded by "-", are kept as one token. Punctuation is only
// stripped from tokens that fall through every other class, so quoted and
// negated terms keep theirs.
func Segment(text string) models.SegmentedQuery {
	var q models.SegmentedQuery
	for _, tok := range tokenRe.FindAllString(NormalizeQuotes(text), -1) {
		switch {
		case isQuoted(tok):
			inner := collapse(tok[1 : len(tok)-1])
			if inner == "" {
				continue
			}
			q.Quoted = append(q.Quoted, models.Term{Text: inner, Requote: hasPunctuation(inner)})
		case strings.HasPrefix(tok, "-"):
			inner := collapse(strings.ReplaceAll(tok[1:], `"`, ""))
			if inner == "" {
				continue
			}
			q.Negated = append(q.Negated, models.Term{Text: inner, Requote: hasPunctuation(inner)})
		case isAlphanumeric(tok):
			q.Prefix = append(q.Prefix, models.Term{Text: tok})
		case punctuatedRe.MatchString(tok):
			q.Punctuated = append(q.Punctuated, models.Term{Text: tok})
		default:
			for _, piece := range strings.Fields(syntaxStripper.Replace(tok)) {
				q.Prefix = append(q.Prefix, models.Term{Text: piece})
			}
		}
	}
	return q
}

// NormalizeQuotes replaces typographic quotes with their ASCII forms.
func NormalizeQuotes(s string) string {
	return smartQuotes.Replace(s)
}

func isQuoted(tok string) bool {
	return len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"'
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func hasPunctuation(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
