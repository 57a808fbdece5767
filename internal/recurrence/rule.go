// Package recurrence expands compact recurrence rules such as
// "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE,FR" into concrete date ranges.
//
// Rules are stored verbatim on tasks and only interpreted here. Malformed
// rules never raise: they expand to nothing. The single exception is a
// non-positive INTERVAL, which is reported as ErrNonPositiveInterval so
// callers can reject it before it is stored.
package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

var ErrNonPositiveInterval = errors.New("recurrence: interval must be positive")

// RuleError reports which key of a rule was rejected.
type RuleError struct {
	Kind  error
	Key   string
	Value string
}

func (e *RuleError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s (%s=%s)", e.Kind.Error(), e.Key, e.Value)
}

func (e *RuleError) Unwrap() error { return e.Kind }

var weekdayCodes = map[string]time.Weekday{
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
	"SU": time.Sunday,
}

// Rule is a parsed recurrence rule. The zero value of an optional field
// means the key was absent.
type Rule struct {
	Freq       Frequency
	Interval   int
	ByDay      []time.Weekday // Monday-first order, no duplicates
	ByMonthDay int
	Count      int
	Until      *time.Time

	malformed bool
}

// Parse reads a rule string. Unknown keys are ignored and a missing FREQ
// defaults to WEEKLY.
func Parse(rule string) (Rule, error) {
	r := Rule{Freq: Weekly, Interval: 1}

	for _, part := range strings.Split(rule, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "FREQ":
			r.Freq = Frequency(strings.ToUpper(value))
		case "INTERVAL":
			n, err := strconv.Atoi(value)
			if err != nil {
				r.malformed = true
				continue
			}
			if n <= 0 {
				return r, &RuleError{Kind: ErrNonPositiveInterval, Key: key, Value: value}
			}
			r.Interval = n
		case "BYDAY":
			r.ByDay = parseByDay(value)
		case "BYMONTHDAY":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > 31 {
				r.malformed = true
				continue
			}
			r.ByMonthDay = n
		case "COUNT":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				r.malformed = true
				continue
			}
			r.Count = n
		case "UNTIL":
			until, err := parseUntil(value)
			if err != nil {
				r.malformed = true
				continue
			}
			r.Until = &until
		}
	}

	return r, nil
}

// Valid reports whether the rule can produce occurrences at all.
func (r Rule) Valid() bool {
	if r.malformed || r.Interval <= 0 {
		return false
	}
	switch r.Freq {
	case Daily, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

func parseByDay(value string) []time.Weekday {
	seen := make(map[time.Weekday]bool)
	var days []time.Weekday
	for _, code := range strings.Split(value, ",") {
		wd, ok := weekdayCodes[strings.ToUpper(strings.TrimSpace(code))]
		if !ok || seen[wd] {
			continue
		}
		seen[wd] = true
		days = append(days, wd)
	}
	sort.Slice(days, func(i, j int) bool {
		return mondayIndex(days[i]) < mondayIndex(days[j])
	})
	return days
}

func parseUntil(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "20060102", "20060102T150405Z"} {
		if t, err := time.Parse(layout, value); err == nil {
			return Date(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("recurrence: bad UNTIL %q", value)
}

// mondayIndex maps Monday..Sunday to 0..6.
func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
