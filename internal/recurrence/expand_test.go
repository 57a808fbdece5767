package recurrence

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func starts(occs []Occurrence) []string {
	out := make([]string, 0, len(occs))
	for _, o := range occs {
		out = append(out, o.Start.Format("2006-01-02"))
	}
	return out
}

func TestExpand(t *testing.T) {
	cases := []struct {
		name     string
		rule     string
		anchor   string
		from, to string
		want     []string
	}{
		{
			name: "weekly byday over two weeks",
			rule: "FREQ=WEEKLY;BYDAY=MO,WE,FR", anchor: "2026-01-05",
			from: "2026-01-05", to: "2026-01-18",
			want: []string{"2026-01-05", "2026-01-07", "2026-01-09", "2026-01-12", "2026-01-14", "2026-01-16"},
		},
		{
			name: "weekly byday every other week",
			rule: "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,FR", anchor: "2026-01-09",
			from: "2026-01-01", to: "2026-02-03",
			want: []string{"2026-01-09", "2026-01-19", "2026-01-23", "2026-02-02"},
		},
		{
			name: "weekly without byday",
			rule: "FREQ=WEEKLY;INTERVAL=1", anchor: "2026-03-04",
			from: "2026-03-01", to: "2026-03-25",
			want: []string{"2026-03-04", "2026-03-11", "2026-03-18", "2026-03-25"},
		},
		{
			name: "daily interval two",
			rule: "FREQ=DAILY;INTERVAL=2", anchor: "2026-05-01",
			from: "2026-05-01", to: "2026-05-07",
			want: []string{"2026-05-01", "2026-05-03", "2026-05-05", "2026-05-07"},
		},
		{
			name: "monthly bymonthday 31 clamps february",
			rule: "FREQ=MONTHLY;BYMONTHDAY=31", anchor: "2026-01-31",
			from: "2026-01-01", to: "2026-04-30",
			want: []string{"2026-01-31", "2026-02-28", "2026-03-31", "2026-04-30"},
		},
		{
			name: "monthly bymonthday 31 leap february",
			rule: "FREQ=MONTHLY;BYMONTHDAY=31", anchor: "2028-01-10",
			from: "2028-01-01", to: "2028-03-31",
			want: []string{"2028-01-10", "2028-02-29", "2028-03-31"},
		},
		{
			name: "monthly keeps anchor day after clamping",
			rule: "FREQ=MONTHLY", anchor: "2026-01-31",
			from: "2026-01-01", to: "2026-03-31",
			want: []string{"2026-01-31", "2026-02-28", "2026-03-31"},
		},
		{
			name: "monthly across year boundary",
			rule: "FREQ=MONTHLY;INTERVAL=5", anchor: "2026-10-15",
			from: "2026-10-01", to: "2027-09-01",
			want: []string{"2026-10-15", "2027-03-15", "2027-08-15"},
		},
		{
			name: "yearly leap day",
			rule: "FREQ=YEARLY", anchor: "2024-02-29",
			from: "2024-01-01", to: "2028-12-31",
			want: []string{"2024-02-29", "2025-02-28", "2026-02-28", "2027-02-28", "2028-02-29"},
		},
		{
			name: "count limits occurrences",
			rule: "FREQ=DAILY;COUNT=3", anchor: "2026-06-01",
			from: "2026-06-01", to: "2026-06-30",
			want: []string{"2026-06-01", "2026-06-02", "2026-06-03"},
		},
		{
			name: "count includes occurrences before the window",
			rule: "FREQ=DAILY;COUNT=3", anchor: "2026-06-01",
			from: "2026-06-03", to: "2026-06-30",
			want: []string{"2026-06-03"},
		},
		{
			name: "until is inclusive",
			rule: "FREQ=DAILY;UNTIL=2026-06-03", anchor: "2026-06-01",
			from: "2026-06-01", to: "2026-06-30",
			want: []string{"2026-06-01", "2026-06-02", "2026-06-03"},
		},
		{
			name: "lowercase keys and spaces",
			rule: " freq = daily ; interval = 3 ", anchor: "2026-06-01",
			from: "2026-06-01", to: "2026-06-07",
			want: []string{"2026-06-01", "2026-06-04", "2026-06-07"},
		},
		{
			name: "unknown freq is empty",
			rule: "FREQ=HOURLY", anchor: "2026-06-01",
			from: "2026-06-01", to: "2026-06-30",
			want: []string{},
		},
		{
			name: "malformed bymonthday is empty",
			rule: "FREQ=MONTHLY;BYMONTHDAY=40", anchor: "2026-06-01",
			from: "2026-06-01", to: "2026-12-31",
			want: []string{},
		},
		{
			name: "window before anchor is empty",
			rule: "FREQ=DAILY", anchor: "2026-06-10",
			from: "2026-06-01", to: "2026-06-05",
			want: []string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Expand(tc.rule, day(tc.anchor), day(tc.from), day(tc.to), 0)
			if err != nil {
				t.Fatalf("Expand: %v", err)
			}
			if s := starts(got); !reflect.DeepEqual(s, tc.want) {
				t.Fatalf("got %v; want %v", s, tc.want)
			}
		})
	}
}

func TestExpandWeeklyByDayStaysOnListedDays(t *testing.T) {
	got, err := Expand("FREQ=WEEKLY;BYDAY=MO,WE,FR", day("2026-01-05"), day("2026-01-05"), day("2026-01-18"), 0)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("expected 6 occurrences, got %d", len(got))
	}
	for _, o := range got {
		switch o.Start.Weekday() {
		case time.Monday, time.Wednesday, time.Friday:
		default:
			t.Fatalf("occurrence %s falls on %s", o.Start.Format("2006-01-02"), o.Start.Weekday())
		}
	}
}

func TestExpandDurationOverlapsWindow(t *testing.T) {
	got, err := Expand("FREQ=WEEKLY", day("2026-03-02"), day("2026-03-05"), day("2026-03-10"), 3)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 occurrences, got %v", starts(got))
	}
	if !got[0].Start.Equal(day("2026-03-02")) || !got[0].End.Equal(day("2026-03-05")) {
		t.Fatalf("unexpected first occurrence %+v", got[0])
	}
	if !got[1].End.Equal(day("2026-03-12")) {
		t.Fatalf("unexpected second end %s", got[1].End)
	}
}

func TestExpandIsRestartable(t *testing.T) {
	rule := "FREQ=MONTHLY;INTERVAL=2;BYMONTHDAY=30;COUNT=20"
	first, err := Expand(rule, day("2026-01-30"), day("2026-01-01"), day("2029-12-31"), 1)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := Expand(rule, day("2026-01-30"), day("2026-01-01"), day("2029-12-31"), 1)
		if err != nil {
			t.Fatalf("Expand: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs", i)
		}
	}
}

func TestExpandRespectsCountAndUntil(t *testing.T) {
	rules := []string{
		"FREQ=DAILY;COUNT=5",
		"FREQ=WEEKLY;BYDAY=TU,TH;COUNT=7",
		"FREQ=MONTHLY;UNTIL=2026-09-15",
		"FREQ=DAILY;INTERVAL=3;UNTIL=20260701",
	}
	for _, rule := range rules {
		r, err := Parse(rule)
		if err != nil {
			t.Fatalf("Parse(%q): %v", rule, err)
		}
		got := r.Expand(day("2026-06-01"), day("2026-01-01"), day("2027-12-31"), 0)
		if r.Count > 0 && len(got) > r.Count {
			t.Fatalf("%q: %d occurrences exceed COUNT", rule, len(got))
		}
		for _, o := range got {
			if r.Until != nil && o.Start.After(*r.Until) {
				t.Fatalf("%q: %s after UNTIL", rule, o.Start)
			}
		}
	}
}

func TestExpandRejectsNonPositiveInterval(t *testing.T) {
	for _, rule := range []string{"FREQ=DAILY;INTERVAL=0", "FREQ=WEEKLY;INTERVAL=-2"} {
		_, err := Expand(rule, day("2026-01-01"), day("2026-01-01"), day("2026-12-31"), 0)
		if !errors.Is(err, ErrNonPositiveInterval) {
			t.Fatalf("%q: expected ErrNonPositiveInterval, got %v", rule, err)
		}
		var ruleErr *RuleError
		if !errors.As(err, &ruleErr) || ruleErr.Key != "INTERVAL" {
			t.Fatalf("%q: expected RuleError for INTERVAL, got %v", rule, err)
		}
	}
}

func TestParse(t *testing.T) {
	r, err := Parse("FREQ=WEEKLY;BYDAY=FR,MO,XX,MO;COUNT=4")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(r.ByDay, []time.Weekday{time.Monday, time.Friday}) {
		t.Fatalf("unexpected BYDAY %v", r.ByDay)
	}
	if r.Count != 4 || r.Interval != 1 || !r.Valid() {
		t.Fatalf("unexpected rule %+v", r)
	}

	r, err = Parse("INTERVAL=abc")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Valid() {
		t.Fatalf("expected malformed interval to invalidate the rule")
	}

	r, _ = Parse("BYDAY=MO")
	if r.Freq != Weekly {
		t.Fatalf("missing FREQ should default to WEEKLY, got %s", r.Freq)
	}
}

func TestNext(t *testing.T) {
	cases := []struct {
		name              string
		rule              string
		anchor, notBefore string
		duration          int
		want              string
		wantOK            bool
	}{
		{"daily from past anchor", "FREQ=DAILY", "2026-10-10", "2026-10-18", 0, "2026-10-18", true},
		{"daily anchored tomorrow skips anchor", "FREQ=DAILY", "2026-10-18", "2026-10-18", 0, "2026-10-19", true},
		{"daily anchored in the future starts after anchor", "FREQ=DAILY", "2026-10-25", "2026-10-18", 0, "2026-10-26", true},
		{"weekly anchored in the future", "FREQ=WEEKLY", "2026-10-25", "2026-10-18", 1, "2026-11-01", true},
		{"weekly byday", "FREQ=WEEKLY;BYDAY=MO", "2026-10-12", "2026-10-18", 0, "2026-10-19", true},
		{"monthly", "FREQ=MONTHLY;BYMONTHDAY=31", "2026-01-31", "2026-02-01", 2, "2026-02-28", true},
		{"exhausted count", "FREQ=DAILY;COUNT=2", "2026-10-01", "2026-10-18", 0, "", false},
		{"unknown freq", "FREQ=SOMETIMES", "2026-10-01", "2026-10-18", 0, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			occ, ok, err := Next(tc.rule, day(tc.anchor), day(tc.notBefore), 365, tc.duration)
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if ok != tc.wantOK {
				t.Fatalf("ok = %v; want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if got := occ.Start.Format("2006-01-02"); got != tc.want {
				t.Fatalf("start = %s; want %s", got, tc.want)
			}
			if daysBetween(occ.Start, occ.End) != tc.duration {
				t.Fatalf("duration = %d; want %d", daysBetween(occ.Start, occ.End), tc.duration)
			}
		})
	}
}

// daysBetween returns the whole days from a to b.
func daysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}
