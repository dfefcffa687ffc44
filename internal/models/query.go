package models

import "strings"

// SecondsPerDay widens single-day ranges.
const SecondsPerDay = 86400

// DateRange is a time window in epoch seconds together with the query text that
// remains after the date phrase was removed.
type DateRange struct {
	Start int64  `json:"start"`
	End   int64  `json:"end"`
	Text  string `json:"text"`
}

// NewDateRange returns a range with Start <= End. Reversed bounds are swapped and
// equal bounds are widened to a full day.
func NewDateRange(start, end int64, text string) *DateRange {
	if end < start {
		start, end = end, start
	}
	if start == end {
		end = start + SecondsPerDay
	}
	return &DateRange{Start: start, End: end, Text: text}
}

// Equal reports whether r and o describe the same window and residual text.
func (r *DateRange) Equal(o *DateRange) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.Start == o.Start && r.End == o.End && r.Text == o.Text
}

// Term is one segmented query token. Requote marks quoted or negated text that
// contains punctuation and must be re-quoted by the backend.
type Term struct {
	Text    string `json:"text"`
	Requote bool   `json:"requote,omitempty"`
}

// SegmentedQuery is free text split into four disjoint, order-preserving groups.
type SegmentedQuery struct {
	Quoted     []Term `json:"quoted"`
	Negated    []Term `json:"negated"`
	Prefix     []Term `json:"prefix"`
	Punctuated []Term `json:"punctuated"`
}

// IsEmpty reports whether no group holds a term.
func (q SegmentedQuery) IsEmpty() bool {
	return len(q.Quoted) == 0 && len(q.Negated) == 0 && len(q.Prefix) == 0 && len(q.Punctuated) == 0
}

// Len returns the total number of terms.
func (q SegmentedQuery) Len() int {
	return len(q.Quoted) + len(q.Negated) + len(q.Prefix) + len(q.Punctuated)
}

// String renders the query in a backend-neutral syntax: prefix terms get a
// trailing "*", quoted and punctuated terms are double-quoted, negations are
// prefixed with "-".
func (q SegmentedQuery) String() string {
	parts := make([]string, 0, q.Len())
	for _, t := range q.Prefix {
		parts = append(parts, t.Text+"*")
	}
	for _, t := range q.Quoted {
		parts = append(parts, `"`+t.Text+`"`)
	}
	for _, t := range q.Punctuated {
		parts = append(parts, `"`+t.Text+`"`)
	}
	for _, t := range q.Negated {
		if t.Requote || strings.ContainsRune(t.Text, ' ') {
			parts = append(parts, `-"`+t.Text+`"`)
			continue
		}
		parts = append(parts, "-"+t.Text)
	}
	return strings.Join(parts, " ")
}

// SearchRequest is what the session hands to a search backend.
type SearchRequest struct {
	Query     SegmentedQuery `json:"query"`
	FileTypes []string       `json:"file_types,omitempty"`
	DateRange *DateRange     `json:"date_range,omitempty"`
	Page      int            `json:"page"`
	Limit     int            `json:"limit"`
}

// Offset returns the zero-based index of the first item on Page.
func (r *SearchRequest) Offset() int {
	if r.Page < 0 || r.Limit <= 0 {
		return 0
	}
	return r.Page * r.Limit
}
