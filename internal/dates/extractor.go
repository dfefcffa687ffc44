// Package dates extracts natural-language date ranges from free-text queries and
// resolves day/month ambiguity for the host locale.
package dates

import (
	"regexp"
	"strings"
	"time"

	"github.com/hyperjump/mitsukeru/internal/models"
)

// Extractor finds the first date or date-range phrase in a query.
type Extractor struct {
	now   func() time.Time
	loc   *time.Location
	order OrderDetector
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock sets the reference clock for relative phrases like "yesterday".
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithLocation sets the timezone days are bounded in.
func WithLocation(loc *time.Location) Option {
	return func(e *Extractor) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithOrderDetector replaces the locale-based day/month order strategy.
func WithOrderDetector(d OrderDetector) Option {
	return func(e *Extractor) { e.order = d }
}

// NewExtractor returns an Extractor using the local clock, the local timezone
// and the date order of the process locale.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		now:   time.Now,
		loc:   time.Local,
		order: LocaleDetector{Tag: DetectLocale()},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the timezone used for day boundaries.
func (e *Extractor) Location() *time.Location { return e.loc }

var (
	quotedSpan = regexp.MustCompile(`"[^"]*"`)
	spaceRun   = regexp.MustCompile(`\s+`)
	smartQuote = strings.NewReplacer("“", `"`, "”", `"`, "„", `"`, "‟", `"`)
)

// Extract returns the date range described by the first date phrase in text,
// with the phrase removed from Text. It returns nil when text holds no date
// phrase or when a double-quoted span contains one. Numeric day/month tokens
// are read in the detector's order, one endpoint at a time, and a token whose
// first field exceeds 12 is always read day-first.
func (e *Extractor) Extract(text string) *models.DateRange {
	text = smartQuote.Replace(text)
	r := ref{now: e.now().In(e.loc), dayFirst: e.order != nil && e.order.Order() == DayFirst}
	for _, q := range quotedSpan.FindAllString(text, -1) {
		if _, ok := findDate(strings.Trim(q, `"`), r); ok {
			return nil
		}
	}
	sp, ok := findDate(text, r)
	if !ok {
		return nil
	}
	residual := collapseSpaces(text[:sp.from] + " " + text[sp.to:])
	start := time.Date(sp.start.Year(), sp.start.Month(), sp.start.Day(), 0, 0, 0, 0, e.loc)
	end := endOfDay(time.Date(sp.end.Year(), sp.end.Month(), sp.end.Day(), 0, 0, 0, 0, e.loc))
	return models.NewDateRange(start.Unix(), end.Unix(), residual)
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
