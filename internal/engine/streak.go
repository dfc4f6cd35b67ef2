package engine

import (
	"math"
	"sort"
	"time"
)

// dateOf truncates a timestamp to its local calendar date.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// sameDay reports whether two timestamps fall on the same calendar date.
func sameDay(a, b time.Time) bool {
	return dateOf(a).Equal(dateOf(b))
}

// uniqueDays returns the distinct calendar dates of the given timestamps,
// sorted descending.
func uniqueDays(times []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(times))
	var days []time.Time
	for _, t := range times {
		d := dateOf(t)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days
}

// daysBetween counts calendar days from a to b, rounding away DST skew.
func daysBetween(a, b time.Time) int {
	return int(math.Round(dateOf(b).Sub(dateOf(a)).Hours() / 24))
}

// CalculateStreak returns the length of the run of consecutive calendar days
// ending at the most recent date in the set. A single day counts as 1; gaps
// end the run.
func CalculateStreak(times []time.Time) int {
	days := uniqueDays(times)
	if len(days) == 0 {
		return 0
	}
	streak := 1
	for i := 1; i < len(days); i++ {
		// Calendar comparison, not duration: DST makes some day gaps 23h/25h.
		if !days[i-1].AddDate(0, 0, -1).Equal(days[i]) {
			break
		}
		streak++
	}
	return streak
}
