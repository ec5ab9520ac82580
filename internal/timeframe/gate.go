// Package timeframe decides whether campaign sends may occur at a given
// instant, based on the campaign's daily window, timezone and days of week.
package timeframe

import (
	"time"

	"github.com/ptrelli/wadrip/internal/campaign"
)

// Within reports whether now falls inside the schedule's sending window.
// A nil or empty schedule means unrestricted sending. The HH:MM comparison
// is lexicographic, which is valid for zero-padded 24h times; a window with
// start > end wraps across midnight (e.g. 22:00-04:00).
func Within(now time.Time, s *campaign.Schedule) bool {
	if s == nil {
		return true
	}

	loc := time.UTC
	if s.Timezone != "" {
		if l, err := time.LoadLocation(s.Timezone); err == nil {
			loc = l
		}
		// Invalid timezones are rejected at campaign validation; a stale
		// value in stored data degrades to UTC rather than blocking sends.
	}
	local := now.In(loc)

	if len(s.DaysOfWeek) > 0 && !allowedDay(local.Weekday(), s.DaysOfWeek) {
		return false
	}

	if s.StartTime == "" || s.EndTime == "" {
		return true
	}

	hhmm := local.Format("15:04")
	if s.StartTime <= s.EndTime {
		return s.StartTime <= hhmm && hhmm <= s.EndTime
	}
	// Overnight window: eligible from start until midnight and from
	// midnight until end.
	return hhmm >= s.StartTime || hhmm <= s.EndTime
}

func allowedDay(day time.Weekday, days []time.Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
