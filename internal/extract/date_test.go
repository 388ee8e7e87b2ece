package extract

import (
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC)

func newTestDateParser() *DateParser {
	return NewDateParserWithClock(time.UTC, func() time.Time { return fixedNow })
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func TestDateParserRelative(t *testing.T) {
	p := newTestDateParser()

	if got := p.Parse("Valid for 30 days"); !sameDay(got, fixedNow.AddDate(0, 0, 30)) {
		t.Fatalf("30 days resolved to %v", got)
	}
	if got := p.Parse("valid for 2 months"); !sameDay(got, time.Date(2026, 12, 17, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("2 months resolved to %v", got)
	}
}

func TestDateParserExplicitDates(t *testing.T) {
	p := newTestDateParser()

	if got := p.Parse("Valid till 31 Dec 2026"); !sameDay(got, time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("month-name date resolved to %v", got)
	}
	if got := p.Parse("Expires 15/03/2027"); !sameDay(got, time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("numeric date resolved to %v", got)
	}
}

func TestDateParserPastDateFallsBackToDefault(t *testing.T) {
	p := newTestDateParser()

	got := p.Parse("Expired on 01-01-2020")
	if !sameDay(got, fixedNow.AddDate(0, 0, defaultExpiryDays)) {
		t.Fatalf("past date should fall back to default, got %v", got)
	}
}

func TestDateParserVagueTerms(t *testing.T) {
	p := newTestDateParser()

	if got := p.Parse("Ongoing offer"); !sameDay(got, fixedNow.AddDate(0, 0, 90)) {
		t.Fatalf("ongoing resolved to %v", got)
	}
	if got := p.Parse("till further notice"); !sameDay(got, fixedNow.AddDate(0, 0, 90)) {
		t.Fatalf("till further notice resolved to %v", got)
	}
	if got := p.Parse("Limited period offer"); !sameDay(got, fixedNow.AddDate(0, 0, 30)) {
		t.Fatalf("limited resolved to %v", got)
	}

	got, rule := p.ParseWithRule("Today only")
	want := time.Date(2026, 10, 17, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	if rule != "vague" || !got.Equal(want) {
		t.Fatalf("today resolved to %v via %s", got, rule)
	}
}

func TestDateParserDefault(t *testing.T) {
	p := newTestDateParser()

	for _, in := range []string{"", "   ", "see site for details"} {
		got, rule := p.ParseWithRule(in)
		if rule != "default" {
			t.Errorf("ParseWithRule(%q) rule = %s", in, rule)
		}
		if !got.Equal(fixedNow.AddDate(0, 0, defaultExpiryDays)) {
			t.Errorf("ParseWithRule(%q) = %v", in, got)
		}
	}
}

func TestDateParserIsExpired(t *testing.T) {
	p := newTestDateParser()

	if p.IsExpired(time.Time{}) {
		t.Fatalf("zero time must not be expired")
	}
	if !p.IsExpired(fixedNow.Add(-time.Second)) {
		t.Fatalf("past instant should be expired")
	}
	if p.IsExpired(fixedNow) {
		t.Fatalf("now is not strictly before now")
	}
	if p.IsExpired(fixedNow.Add(time.Hour)) {
		t.Fatalf("future instant should not be expired")
	}
}
