package dates

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/cs"
	"github.com/go-playground/locales/da"
	"github.com/go-playground/locales/de"
	"github.com/go-playground/locales/de_AT"
	"github.com/go-playground/locales/de_CH"
	"github.com/go-playground/locales/de_DE"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/en_AU"
	"github.com/go-playground/locales/en_CA"
	"github.com/go-playground/locales/en_GB"
	"github.com/go-playground/locales/en_IE"
	"github.com/go-playground/locales/en_IN"
	"github.com/go-playground/locales/en_NZ"
	"github.com/go-playground/locales/en_PH"
	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/en_ZA"
	"github.com/go-playground/locales/es"
	"github.com/go-playground/locales/es_ES"
	"github.com/go-playground/locales/es_MX"
	"github.com/go-playground/locales/fi"
	"github.com/go-playground/locales/fr"
	"github.com/go-playground/locales/fr_BE"
	"github.com/go-playground/locales/fr_CA"
	"github.com/go-playground/locales/fr_CH"
	"github.com/go-playground/locales/fr_FR"
	"github.com/go-playground/locales/hu"
	"github.com/go-playground/locales/id"
	"github.com/go-playground/locales/id_ID"
	"github.com/go-playground/locales/it"
	"github.com/go-playground/locales/it_IT"
	"github.com/go-playground/locales/ja"
	"github.com/go-playground/locales/ko"
	"github.com/go-playground/locales/lt"
	"github.com/go-playground/locales/nb"
	"github.com/go-playground/locales/nl"
	"github.com/go-playground/locales/nl_BE"
	"github.com/go-playground/locales/nl_NL"
	"github.com/go-playground/locales/pl"
	"github.com/go-playground/locales/pt"
	"github.com/go-playground/locales/pt_BR"
	"github.com/go-playground/locales/pt_PT"
	"github.com/go-playground/locales/ru"
	"github.com/go-playground/locales/sv"
	"github.com/go-playground/locales/sv_SE"
	"github.com/go-playground/locales/tr"
	"github.com/go-playground/locales/uk"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"golang.org/x/text/language"

	"github.com/hyperjump/mitsukeru/internal/models"
)

// DateOrder is the conventional order of the day and month fields in a short date.
type DateOrder int

const (
	MonthFirst DateOrder = iota
	DayFirst
)

func (o DateOrder) String() string {
	if o == DayFirst {
		return "day_first"
	}
	return "month_first"
}

// ParseOrder maps a configuration value to a DateOrder. ok is false for "auto",
// empty, or unknown values.
func ParseOrder(s string) (order DateOrder, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "month_first", "mdy", "us":
		return MonthFirst, true
	case "day_first", "dmy":
		return DayFirst, true
	}
	return MonthFirst, false
}

// OrderDetector reports the host's date order. Implementations are consulted
// once per disambiguation.
type OrderDetector interface {
	Order() DateOrder
}

// FixedOrder always reports the same order.
type FixedOrder DateOrder

// Order implements OrderDetector.
func (f FixedOrder) Order() DateOrder { return DateOrder(f) }

// LocaleDetector derives the order from the CLDR short-date rendering of a
// reference date in Tag's locale.
type LocaleDetector struct {
	Tag language.Tag
}

// Order renders 10 February 2000 and compares the positions of the day and
// month fields. Year-first renderings count as month-first.
func (d LocaleDetector) Order() DateOrder {
	return orderOf(RenderReference(d.Tag))
}

var referenceDate = time.Date(2000, time.February, 10, 0, 0, 0, 0, time.UTC)

var translators = ut.New(en_US.New(),
	en.New(), en_US.New(), en_GB.New(), en_AU.New(), en_CA.New(), en_IE.New(),
	en_IN.New(), en_NZ.New(), en_PH.New(), en_ZA.New(),
	de.New(), de_DE.New(), de_AT.New(), de_CH.New(),
	fr.New(), fr_FR.New(), fr_CA.New(), fr_BE.New(), fr_CH.New(),
	es.New(), es_ES.New(), es_MX.New(), it.New(), it_IT.New(),
	pt.New(), pt_BR.New(), pt_PT.New(), nl.New(), nl_NL.New(), nl_BE.New(),
	sv.New(), sv_SE.New(), fi.New(), nb.New(), da.New(), pl.New(), cs.New(),
	hu.New(), ru.New(), uk.New(), tr.New(), lt.New(), id.New(), id_ID.New(),
	ja.New(), ko.New(), zh.New(),
)

// translatorFor picks the most specific known locale for tag, falling back to
// the language alone and then to en_US.
func translatorFor(tag language.Tag) locales.Translator {
	base, _ := tag.Base()
	region, _ := tag.Region()
	trans, _ := translators.FindTranslator(base.String()+"_"+region.String(), base.String())
	return trans
}

// RenderReference returns the CLDR short-date rendering of 10 February 2000 for tag.
func RenderReference(tag language.Tag) string {
	return translatorFor(tag).FmtDateShort(referenceDate)
}

// orderOf finds the day (10) and month (2) fields in a rendered reference date.
func orderOf(rendered string) DateOrder {
	dayAt, monthAt := -1, -1
	fields := strings.FieldsFunc(rendered, func(r rune) bool { return r < '0' || r > '9' })
	for i, f := range fields {
		switch atoi(f) {
		case 10:
			dayAt = i
		case 2:
			monthAt = i
		}
	}
	if dayAt >= 0 && monthAt >= 0 && dayAt < monthAt {
		return DayFirst
	}
	return MonthFirst
}

// DetectLocale reads the POSIX locale variables from the process environment.
func DetectLocale() language.Tag {
	return LocaleFromEnv(os.Getenv)
}

// LocaleFromEnv resolves LC_ALL, LC_TIME and LANG in that order. Unset, C and
// POSIX locales map to en-US.
func LocaleFromEnv(getenv func(string) string) language.Tag {
	for _, key := range []string{"LC_ALL", "LC_TIME", "LANG"} {
		if v := getenv(key); v != "" {
			return ParseLocale(v)
		}
	}
	return language.AmericanEnglish
}

// ParseLocale parses a BCP 47 tag or a POSIX locale name such as "en_GB.UTF-8".
func ParseLocale(s string) language.Tag {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	if s == "" || s == "C" || s == "POSIX" {
		return language.AmericanEnglish
	}
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}

// bareNumericDate matches d/m or d-m tokens that are not part of an ISO date.
var bareNumericDate = regexp.MustCompile(`(?:^|[^\d/-])\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?(?:$|[^\d/-])`)

// HasBareNumericDate reports whether text contains a numeric day/month token.
func HasBareNumericDate(text string) bool {
	return bareNumericDate.MatchString(text)
}

// Resolve swaps the day and month of both bounds of a range that was read
// month-first, when d reports a day-first locale and originalText holds a bare
// numeric date. Swaps that produce an invalid calendar date leave r unchanged.
//
// originalText should be the matched date phrase rather than the whole query,
// so that numbers elsewhere in the query ("1/2 cup") do not trigger a swap.
// Extractor does not call Resolve; it reads each numeric endpoint in locale
// order while parsing, which also handles ranges where only one endpoint is
// ambiguous.
func Resolve(r *models.DateRange, originalText string, d OrderDetector, loc *time.Location) *models.DateRange {
	if r == nil || d == nil {
		return r
	}
	if d.Order() != DayFirst || !HasBareNumericDate(originalText) {
		return r
	}
	if loc == nil {
		loc = time.Local
	}
	start, ok := swapDayMonth(time.Unix(r.Start, 0).In(loc))
	if !ok {
		return r
	}
	end, ok := swapDayMonth(time.Unix(r.End, 0).In(loc))
	if !ok {
		return r
	}
	return models.NewDateRange(startOfDay(start).Unix(), endOfDay(end).Unix(), r.Text)
}

func swapDayMonth(t time.Time) (time.Time, bool) {
	return calendarDate(t.Year(), t.Day(), int(t.Month()), t.Location())
}
