package funding

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SHIFT CLASSIFIER
// =============================================================================

// SleepoverMinLength is the shortest overnight shift billed as a sleepover.
const SleepoverMinLength = 8 * time.Hour

var nanosPerHour = decimal.NewFromInt(int64(time.Hour))

// Duration returns end-start in hours, rounded to two decimals.
// Negative durations are clamped to zero.
func Duration(start, end time.Time) decimal.Decimal {
	d := end.Sub(start)
	if d <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(d)).Div(nanosPerHour).Round(2)
}

// Classify maps a shift to its category.
//
// A shift of at least eight hours that starts in [18:00, 10:00) is a
// sleepover. This check runs before the start-hour buckets and must stay
// first, since it changes the rate applied:
//
//	[06:00, 20:00) day
//	[20:00, 24:00) evening
//	[00:00, 06:00) active night
//
// The start hour is read in the location carried by start.
func Classify(start, end time.Time) ShiftCategory {
	hour := start.Hour()
	if end.Sub(start) >= SleepoverMinLength && isOvernightStart(hour) {
		return ShiftSleepover
	}
	return categoryForHour(hour)
}

func isOvernightStart(hour int) bool {
	return hour >= 18 || hour < 10
}

func categoryForHour(hour int) ShiftCategory {
	switch {
	case hour >= 6 && hour < 20:
		return ShiftDay
	case hour >= 20:
		return ShiftEvening
	default:
		return ShiftActiveNight
	}
}
