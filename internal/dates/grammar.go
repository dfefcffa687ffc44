package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const monthPat = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday, "sunday": time.Sunday,
}

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// ref is the clock and numeric field order a phrase is interpreted against.
type ref struct {
	now      time.Time
	dayFirst bool
}

func (r ref) today() time.Time { return startOfDay(r.now) }

// span is a matched phrase and the calendar days it covers.
type span struct {
	from, to   int
	start, end time.Time
}

type parseFunc func(r ref, g []string) (start, end time.Time, ok bool)

// singleRule matches one date or period.
type singleRule struct {
	body     string
	parse    parseFunc
	re       *regexp.Regexp
	anchored *regexp.Regexp
}

func newSingle(body string, parse parseFunc) *singleRule {
	return &singleRule{
		body:     body,
		parse:    parse,
		re:       regexp.MustCompile(`(?i)\b(?:on\s+)?(?:` + body + `)\b`),
		anchored: regexp.MustCompile(`(?i)^(?:` + body + `)$`),
	}
}

func (s *singleRule) find(text string, r ref) (span, bool) {
	for _, idx := range s.re.FindAllStringSubmatchIndex(text, -1) {
		if start, end, ok := s.parse(r, groups(text, idx)); ok {
			return span{from: idx[0], to: idx[1], start: start, end: end}, true
		}
	}
	return span{}, false
}

func (s *singleRule) parseExact(text string, r ref) (time.Time, time.Time, bool) {
	idx := s.anchored.FindStringSubmatchIndex(text)
	if idx == nil {
		return time.Time{}, time.Time{}, false
	}
	return s.parse(r, groups(text, idx))
}

// rangeRule matches two endpoints (or one endpoint and today) joined by a connector.
type rangeRule struct {
	re         *regexp.Regexp
	from, to   int
	untilToday bool
}

func newRange(pattern string, untilToday bool) *rangeRule {
	re := regexp.MustCompile(`(?i)\b` + pattern + `\b`)
	return &rangeRule{re: re, from: re.SubexpIndex("from"), to: re.SubexpIndex("to"), untilToday: untilToday}
}

func (rr *rangeRule) find(text string, r ref) (span, bool) {
	for _, idx := range rr.re.FindAllStringSubmatchIndex(text, -1) {
		fromText := text[idx[2*rr.from]:idx[2*rr.from+1]]
		start, fromEnd, ok := parseEndpoint(fromText, r)
		if !ok {
			continue
		}
		toStart, end := r.today(), r.today()
		if !rr.untilToday {
			toText := text[idx[2*rr.to]:idx[2*rr.to+1]]
			if toStart, end, ok = parseEndpoint(toText, r); !ok {
				continue
			}
		}
		if end.Before(start) {
			start, end = toStart, fromEnd
		}
		return span{from: idx[0], to: idx[1], start: start, end: end}, true
	}
	return span{}, false
}

type matcher interface {
	find(text string, r ref) (span, bool)
}

var (
	isoRule = newSingle(`(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})`, func(_ ref, g []string) (time.Time, time.Time, bool) {
		return day(calendarDate(atoi(g[1]), atoi(g[2]), atoi(g[3]), time.UTC))
	})

	numericRule = newSingle(`(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?|(\d{1,2})-(\d{1,2})-(\d{4}|\d{2})`, func(r ref, g []string) (time.Time, time.Time, bool) {
		a, b, y := g[1], g[2], g[3]
		if a == "" {
			a, b, y = g[4], g[5], g[6]
		}
		month, dom := atoi(a), atoi(b)
		if r.dayFirst {
			month, dom = dom, month
		}
		if month > 12 && dom <= 12 {
			month, dom = dom, month
		}
		return day(calendarDate(yearOr(y, r), month, dom, time.UTC))
	})

	monthDayRule = newSingle(monthPat+`\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?`, func(r ref, g []string) (time.Time, time.Time, bool) {
		return day(calendarDate(yearOr(g[3], r), int(monthOf(g[1])), atoi(g[2]), time.UTC))
	})

	dayMonthRule = newSingle(`(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?`+monthPat+`(?:,?\s+(\d{4}))?`, func(r ref, g []string) (time.Time, time.Time, bool) {
		return day(calendarDate(yearOr(g[3], r), int(monthOf(g[2])), atoi(g[1]), time.UTC))
	})

	monthYearRule = newSingle(monthPat+`\.?,?\s+(\d{4})`, func(_ ref, g []string) (time.Time, time.Time, bool) {
		return wholeMonth(atoi(g[2]), monthOf(g[1]))
	})

	inMonthRule = newSingle(`(?:in|during)\s+`+monthPat, func(r ref, g []string) (time.Time, time.Time, bool) {
		return wholeMonth(r.now.Year(), monthOf(g[1]))
	})

	bareMonthRule = newSingle(monthPat, func(r ref, g []string) (time.Time, time.Time, bool) {
		return wholeMonth(r.now.Year(), monthOf(g[1]))
	})

	relativeDayRule = newSingle(`(today|yesterday|tomorrow)`, func(r ref, g []string) (time.Time, time.Time, bool) {
		t := r.today()
		switch strings.ToLower(g[1]) {
		case "yesterday":
			t = t.AddDate(0, 0, -1)
		case "tomorrow":
			t = t.AddDate(0, 0, 1)
		}
		return t, t, true
	})

	windowRule = newSingle(`(?:last|past)\s+(\d{1,3})\s+(days?|weeks?|months?|years?)`, func(r ref, g []string) (time.Time, time.Time, bool) {
		n := atoi(g[1])
		if n <= 0 {
			return time.Time{}, time.Time{}, false
		}
		return shift(r.today(), g[2], -n), r.today(), true
	})

	agoRule = newSingle(`(\d{1,3}|an?|one|two|three|four|five|six|seven|eight|nine|ten)\s+(days?|weeks?|months?|years?)\s+ago`, func(r ref, g []string) (time.Time, time.Time, bool) {
		n, ok := numberWords[strings.ToLower(g[1])]
		if !ok {
			n = atoi(g[1])
		}
		t := shift(r.today(), g[2], -n)
		return t, t, true
	})

	periodRule = newSingle(`(this|last|past|next)\s+(week|month|year)`, func(r ref, g []string) (time.Time, time.Time, bool) {
		offset := 0
		switch strings.ToLower(g[1]) {
		case "last", "past":
			offset = -1
		case "next":
			offset = 1
		}
		today := r.today()
		switch strings.ToLower(g[2]) {
		case "week":
			monday := weekStart(today).AddDate(0, 0, 7*offset)
			return monday, monday.AddDate(0, 0, 6), true
		case "month":
			first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()).AddDate(0, offset, 0)
			return first, first.AddDate(0, 1, -1), true
		default:
			first := time.Date(today.Year()+offset, time.January, 1, 0, 0, 0, 0, today.Location())
			return first, first.AddDate(1, 0, -1), true
		}
	})

	weekdayRule = newSingle(`(?:(last|this|next)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)`, func(r ref, g []string) (time.Time, time.Time, bool) {
		offset := 0
		switch strings.ToLower(g[1]) {
		case "last":
			offset = -1
		case "next":
			offset = 1
		}
		wd := weekdays[strings.ToLower(g[2])]
		t := weekStart(r.today()).AddDate(0, 0, 7*offset+mondayIndex(wd))
		return t, t, true
	})
)

// singles are tried in order. Earlier rules win ties at the same position and length.
var singles = []*singleRule{
	isoRule, numericRule, monthDayRule, dayMonthRule, monthYearRule, inMonthRule,
	relativeDayRule, windowRule, agoRule, periodRule, weekdayRule,
}

var endpointPat = func() string {
	bodies := make([]string, 0, len(singles)+1)
	for _, s := range singles {
		bodies = append(bodies, s.body)
	}
	bodies = append(bodies, bareMonthRule.body)
	return `(?:` + strings.Join(bodies, "|") + `)`
}()

var ranges = []*rangeRule{
	newRange(`between\s+(?P<from>`+endpointPat+`)\s+and\s+(?P<to>`+endpointPat+`)`, false),
	newRange(`(?:from\s+)?(?P<from>`+endpointPat+`)\s+(?:to|until|till|through|thru|-)\s+(?P<to>`+endpointPat+`)`, false),
	newRange(`since\s+(?P<from>`+endpointPat+`)`, true),
}

var matchers = func() []matcher {
	out := make([]matcher, 0, len(ranges)+len(singles))
	for _, rr := range ranges {
		out = append(out, rr)
	}
	for _, s := range singles {
		out = append(out, s)
	}
	return out
}()

// findDate returns the earliest date phrase in text, preferring the longest
// phrase when several start at the same offset.
func findDate(text string, r ref) (span, bool) {
	var best span
	found := false
	for _, m := range matchers {
		sp, ok := m.find(text, r)
		if !ok {
			continue
		}
		if !found || sp.from < best.from || (sp.from == best.from && sp.to-sp.from > best.to-best.from) {
			best, found = sp, true
		}
	}
	return best, found
}

func parseEndpoint(text string, r ref) (time.Time, time.Time, bool) {
	for _, s := range singles {
		if start, end, ok := s.parseExact(text, r); ok {
			return start, end, true
		}
	}
	return bareMonthRule.parseExact(text, r)
}

func groups(text string, idx []int) []string {
	g := make([]string, len(idx)/2)
	for i := range g {
		if idx[2*i] >= 0 {
			g[i] = text[idx[2*i]:idx[2*i+1]]
		}
	}
	return g
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func yearOr(s string, r ref) int {
	if s == "" {
		return r.now.Year()
	}
	y := atoi(s)
	if len(s) == 2 {
		if y < 70 {
			return 2000 + y
		}
		return 1900 + y
	}
	return y
}

func monthOf(name string) time.Month {
	name = strings.ToLower(name)
	if len(name) < 3 {
		return 0
	}
	return monthsByPrefix[name[:3]]
}

func day(t time.Time, ok bool) (time.Time, time.Time, bool) {
	return t, t, ok
}

func wholeMonth(year int, month time.Month) (time.Time, time.Time, bool) {
	if month < time.January || month > time.December {
		return time.Time{}, time.Time{}, false
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1), true
}

func shift(t time.Time, unit string, n int) time.Time {
	switch strings.TrimSuffix(strings.ToLower(unit), "s") {
	case "week":
		return t.AddDate(0, 0, 7*n)
	case "month":
		return t.AddDate(0, n, 0)
	case "year":
		return t.AddDate(n, 0, 0)
	}
	return t.AddDate(0, 0, n)
}

func weekStart(t time.Time) time.Time {
	return t.AddDate(0, 0, -mondayIndex(t.Weekday()))
}

func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// calendarDate builds midnight of y-m-d in loc, rejecting dates that would overflow.
func calendarDate(y, m, d int, loc *time.Location) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || y < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
