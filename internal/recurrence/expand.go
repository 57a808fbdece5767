package recurrence

import "time"

// safetyDays bounds every walk to a year past the query window.
const safetyDays = 366

// Occurrence is one concrete, inclusive date range produced by a rule.
type Occurrence struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Expand parses rule and returns every occurrence overlapping
// [windowStart, windowEnd], ascending by start. Only ErrNonPositiveInterval
// is returned as an error; other defects yield an empty result.
func Expand(rule string, anchor, windowStart, windowEnd time.Time, durationDays int) ([]Occurrence, error) {
	r, err := Parse(rule)
	if err != nil {
		return nil, err
	}
	return r.Expand(anchor, windowStart, windowEnd, durationDays), nil
}

// Expand walks forward from anchor, which is always the first candidate.
// Each occurrence ends durationDays after it starts.
func (r Rule) Expand(anchor, windowStart, windowEnd time.Time, durationDays int) []Occurrence {
	if !r.Valid() {
		return nil
	}
	if durationDays < 0 {
		durationDays = 0
	}

	anchor, windowStart, windowEnd = Date(anchor), Date(windowStart), Date(windowEnd)
	if windowEnd.Before(windowStart) {
		return nil
	}
	ceiling := windowEnd.AddDate(0, 0, safetyDays)

	var out []Occurrence
	current := anchor
	for step := 1; !current.After(ceiling); step++ {
		if r.Count > 0 && step > r.Count {
			break
		}
		if r.Until != nil && current.After(*r.Until) {
			break
		}
		if current.After(windowEnd) {
			break
		}

		end := current.AddDate(0, 0, durationDays)
		if !end.Before(windowStart) {
			out = append(out, Occurrence{Start: current, End: end})
		}

		next := r.advance(anchor, current, step)
		if !next.After(current) {
			break
		}
		current = next
	}
	return out
}

// Next returns the earliest occurrence that starts on or after notBefore
// and strictly after anchor, looking horizonDays past notBefore.
func Next(rule string, anchor, notBefore time.Time, horizonDays, durationDays int) (Occurrence, bool, error) {
	notBefore = Date(notBefore)
	occs, err := Expand(rule, anchor, notBefore, notBefore.AddDate(0, 0, horizonDays), durationDays)
	if err != nil {
		return Occurrence{}, false, err
	}
	anchor = Date(anchor)
	for _, occ := range occs {
		if !occ.Start.Before(notBefore) && occ.Start.After(anchor) {
			return occ, true, nil
		}
	}
	return Occurrence{}, false, nil
}

// advance computes the candidate following current. Month and year steps
// are measured from the anchor so a clamped day never drifts.
func (r Rule) advance(anchor, current time.Time, step int) time.Time {
	switch r.Freq {
	case Daily:
		return current.AddDate(0, 0, r.Interval)
	case Weekly:
		if len(r.ByDay) == 0 {
			return current.AddDate(0, 0, 7*r.Interval)
		}
		wd := mondayIndex(current.Weekday())
		for _, d := range r.ByDay {
			if idx := mondayIndex(d); idx > wd {
				return current.AddDate(0, 0, idx-wd)
			}
		}
		// first listed day of the week Interval weeks after this week's Monday
		return current.AddDate(0, 0, 7-wd+7*(r.Interval-1)+mondayIndex(r.ByDay[0]))
	case Monthly:
		months := int(anchor.Month()) - 1 + step*r.Interval
		year := anchor.Year() + months/12
		month := time.Month(months%12 + 1)
		day := anchor.Day()
		if r.ByMonthDay > 0 {
			day = r.ByMonthDay
		}
		return clampedDate(year, month, day)
	case Yearly:
		return clampedDate(anchor.Year()+step*r.Interval, anchor.Month(), anchor.Day())
	}
	return current
}

// Date truncates t to its civil date at UTC midnight.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func clampedDate(year int, month time.Month, day int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
