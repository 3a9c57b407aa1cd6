package funding_test

import (
	"testing"
	"time"

	"github.com/carelink/funding-engine/funding"
	"github.com/stretchr/testify/assert"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, time.UTC)
}

func TestClassify_ShortShifts_ByStartHour(t *testing.T) {
	// GIVEN: 4-hour shifts starting at every hour of the day
	// THEN: category depends only on the start hour bucket
	for hour := 0; hour < 24; hour++ {
		start := at(10, hour, 0)
		got := funding.Classify(start, start.Add(4*time.Hour))

		var want funding.ShiftCategory
		switch {
		case hour >= 6 && hour < 20:
			want = funding.ShiftDay
		case hour >= 20:
			want = funding.ShiftEvening
		default:
			want = funding.ShiftActiveNight
		}
		assert.Equal(t, want, got, "start hour %d", hour)
	}
}

func TestClassify_LongOvernightShifts_AreSleepover(t *testing.T) {
	// GIVEN: 8+ hour shifts starting in [18,24) or [0,10)
	// THEN: always sleepover, overriding the hour buckets
	for _, hour := range []int{18, 19, 20, 22, 23, 0, 3, 6, 9} {
		start := at(10, hour, 0)
		assert.Equal(t, funding.ShiftSleepover, funding.Classify(start, start.Add(8*time.Hour)), "start hour %d", hour)
		assert.Equal(t, funding.ShiftSleepover, funding.Classify(start, start.Add(10*time.Hour)), "start hour %d", hour)
	}
}

func TestClassify_LongDayShift_StaysDay(t *testing.T) {
	// GIVEN: 8+ hour shifts starting between 10:00 and 17:59
	// THEN: the overnight rule does not apply
	for _, hour := range []int{10, 12, 14, 17} {
		start := at(10, hour, 0)
		assert.Equal(t, funding.ShiftDay, funding.Classify(start, start.Add(8*time.Hour)), "start hour %d", hour)
	}
}

func TestClassify_EightHoursFromNine_IsSleepover(t *testing.T) {
	// 09:00 is inside the [00:00, 10:00) overnight window, so a 09:00-17:00
	// shift is a sleepover even though the worked example of a 09:00-17:00
	// weekday shift at 1:1 lists it as Day at $520.00. The overnight rule
	// wins; see "Sleepover rule" in DESIGN.md.
	start := at(10, 9, 0)
	assert.Equal(t, funding.ShiftSleepover, funding.Classify(start, at(10, 17, 0)))
	assert.Equal(t, funding.ShiftDay, funding.Classify(start, at(10, 16, 59)))
}

func TestClassify_JustUnderEightHours_UsesBuckets(t *testing.T) {
	start := at(10, 22, 0)
	end := start.Add(8*time.Hour - time.Minute)
	assert.Equal(t, funding.ShiftEvening, funding.Classify(start, end))
}

func TestClassify_UsesStartLocation(t *testing.T) {
	// 20:00 in UTC+10 is 10:00 UTC; the shift's own zone decides the bucket
	zone := time.FixedZone("AEST", 10*60*60)
	start := time.Date(2025, time.March, 10, 20, 0, 0, 0, zone)
	assert.Equal(t, funding.ShiftEvening, funding.Classify(start, start.Add(2*time.Hour)))
	assert.Equal(t, funding.ShiftDay, funding.Classify(start.UTC(), start.UTC().Add(2*time.Hour)))
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		want       string
	}{
		{"whole hours", at(10, 9, 0), at(10, 17, 0), "8"},
		{"half hour", at(10, 9, 0), at(10, 11, 30), "2.5"},
		{"twenty minutes rounds to two places", at(10, 9, 0), at(10, 9, 20), "0.33"},
		{"forty minutes rounds up", at(10, 9, 0), at(10, 9, 40), "0.67"},
		{"overnight", at(10, 22, 0), at(11, 7, 0), "9"},
		{"negative clamps to zero", at(10, 17, 0), at(10, 9, 0), "0"},
		{"zero length", at(10, 9, 0), at(10, 9, 0), "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := funding.Duration(tt.start, tt.end)
			assert.True(t, got.Equal(funding.MustDecimal(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}
