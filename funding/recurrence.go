package funding

import (
	"slices"
	"time"
)

const (
	// MaxOccurrences bounds a generated series.
	MaxOccurrences = 366

	// MaxEveryWeeks is the longest supported repeat interval.
	MaxEveryWeeks = 52
)

// Recurrence describes a repeating shift pattern.
//
// Occurrences start on the calendar day of FirstStart. A day is kept when
// its weekday is listed in Weekdays (or matches FirstStart's weekday when
// Weekdays is empty) and it falls in a week that is a multiple of
// EveryWeeks from the first week. Weeks run Monday to Sunday. Generation
// stops at the first of: the Until date (inclusive), Count occurrences,
// MaxOccurrences. Without Until or Count only the first matching
// occurrence is produced.
type Recurrence struct {
	FirstStart time.Time
	Length     time.Duration
	Weekdays   []time.Weekday
	EveryWeeks int
	Until      time.Time
	Count      int
}

// Occurrences expands the pattern into shift intervals. Each occurrence
// keeps FirstStart's wall-clock time in its location, so a 22:00 shift
// stays at 22:00 across a daylight-saving change.
//
// A non-positive Length or an EveryWeeks above MaxEveryWeeks yields no
// occurrences. At most MaxOccurrences+1 selected weeks are scanned, so the
// work is bounded whatever the input.
func (r Recurrence) Occurrences() []ShiftInterval {
	if r.Length <= 0 || r.EveryWeeks > MaxEveryWeeks {
		return nil
	}

	every := max(r.EveryWeeks, 1)
	weekdays := r.Weekdays
	if len(weekdays) == 0 {
		weekdays = []time.Weekday{r.FirstStart.Weekday()}
	}

	limit := MaxOccurrences
	if r.Count > 0 && r.Count < limit {
		limit = r.Count
	}
	if r.Count <= 0 && r.Until.IsZero() {
		limit = 1
	}

	first := r.FirstStart
	sinceMonday := (int(first.Weekday()) + 6) % 7

	var out []ShiftInterval
	for n := 0; n <= MaxOccurrences && len(out) < limit; n++ {
		for i := 0; i < 7 && len(out) < limit; i++ {
			day := n*every*7 + i - sinceMonday
			if day < 0 {
				continue
			}
			start := first.AddDate(0, 0, day)
			if !r.Until.IsZero() && afterDate(start, r.Until) {
				return out
			}
			if !slices.Contains(weekdays, start.Weekday()) {
				continue
			}
			out = append(out, ShiftInterval{Start: start, End: start.Add(r.Length)})
		}
	}
	return out
}

// afterDate compares calendar dates, ignoring time of day.
func afterDate(t, limit time.Time) bool {
	limit = limit.In(t.Location())
	ty, tm, td := t.Date()
	ly, lm, ld := limit.Date()
	if ty != ly {
		return ty > ly
	}
	if tm != lm {
		return tm > lm
	}
	return td > ld
}
