package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

const (
	defaultExpiryDays = 60
	ongoingExpiryDays = 90
	limitedExpiryDays = 30
)

var (
	dayMonthYearRe = regexp.MustCompile(`(\d{1,2})\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+(\d{4})`)
	numericDateRe  = regexp.MustCompile(`(\d{1,2})[-/](\d{1,2})[-/](\d{4})`)
	relDaysRe      = regexp.MustCompile(`(\d+)\s*days?`)
	relMonthsRe    = regexp.MustCompile(`(\d+)\s*months?`)

	monthAbbrev = map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
		"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
		"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
	}
)

// dateRule resolves validity text to an expiry instant, or reports no match.
type dateRule struct {
	name    string
	resolve func(p *DateParser, text string, now time.Time) (time.Time, bool)
}

// dateRules is the strategy chain; the first rule that resolves wins.
var dateRules = []dateRule{
	{name: "natural", resolve: (*DateParser).natural},
	{name: "day_month_year", resolve: (*DateParser).dayMonthYear},
	{name: "numeric", resolve: (*DateParser).numeric},
	{name: "relative_days", resolve: (*DateParser).relativeDays},
	{name: "relative_months", resolve: (*DateParser).relativeMonths},
	{name: "vague", resolve: (*DateParser).vague},
}

// DateParser turns free-text validity strings into absolute expiry instants.
// It never fails: unparseable input falls back to a default window.
type DateParser struct {
	loc  *time.Location
	now  func() time.Time
	when *when.Parser
}

// NewDateParser builds a parser resolving dates in loc (time.Local when nil).
func NewDateParser(loc *time.Location) *DateParser {
	return NewDateParserWithClock(loc, time.Now)
}

// NewDateParserWithClock builds a parser with an injected clock.
func NewDateParserWithClock(loc *time.Location, now func() time.Time) *DateParser {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &DateParser{loc: loc, now: now, when: w}
}

// Now returns the parser's current time in its location.
func (p *DateParser) Now() time.Time {
	return p.now().In(p.loc)
}

// Parse resolves text to an expiry instant.
func (p *DateParser) Parse(text string) time.Time {
	t, _ := p.ParseWithRule(text)
	return t
}

// ParseWithRule resolves text and also names the strategy that produced the
// instant ("default" when none matched).
func (p *DateParser) ParseWithRule(text string) (time.Time, string) {
	now := p.Now()
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return now.AddDate(0, 0, defaultExpiryDays), "default"
	}

	for _, rule := range dateRules {
		if t, ok := rule.resolve(p, lower, now); ok {
			return t, rule.name
		}
	}
	return now.AddDate(0, 0, defaultExpiryDays), "default"
}

// IsExpired reports whether t lies strictly before now. A zero t means unknown
// validity and is never expired.
func (p *DateParser) IsExpired(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	return t.Before(p.Now())
}

func (p *DateParser) natural(text string, now time.Time) (time.Time, bool) {
	r, err := p.when.Parse(text, now)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	if !r.Time.After(now) {
		return time.Time{}, false
	}
	return r.Time, true
}

func (p *DateParser) dayMonthYear(text string, now time.Time) (time.Time, bool) {
	m := dayMonthYearRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	return p.futureDate(year, monthAbbrev[m[2]], day, now)
}

func (p *DateParser) numeric(text string, now time.Time) (time.Time, bool) {
	m := numericDateRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	return p.futureDate(year, time.Month(month), day, now)
}

// futureDate builds a calendar date at local midnight and accepts it only when
// it is a real date strictly after now.
func (p *DateParser) futureDate(year int, month time.Month, day int, now time.Time) (time.Time, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, p.loc)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	if !t.After(now) {
		return time.Time{}, false
	}
	return t, true
}

func (p *DateParser) relativeDays(text string, now time.Time) (time.Time, bool) {
	n, ok := firstInt(relDaysRe, text)
	if !ok {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, n), true
}

func (p *DateParser) relativeMonths(text string, now time.Time) (time.Time, bool) {
	n, ok := firstInt(relMonthsRe, text)
	if !ok {
		return time.Time{}, false
	}
	return now.AddDate(0, n, 0), true
}

func (p *DateParser) vague(text string, now time.Time) (time.Time, bool) {
	switch {
	case strings.Contains(text, "ongoing"), strings.Contains(text, "till further notice"):
		return now.AddDate(0, 0, ongoingExpiryDays), true
	case strings.Contains(text, "limited"):
		return now.AddDate(0, 0, limitedExpiryDays), true
	case strings.Contains(text, "today"):
		y, m, d := now.Date()
		return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), p.loc), true
	}
	return time.Time{}, false
}

func firstInt(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
