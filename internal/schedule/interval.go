package schedule

// Interval is a weekly half-open [Start, End) window on one day.
type Interval struct {
	Day   DayOfWeek
	Start Clock
	End   Clock
}

// Overlaps reports whether a and b collide. Intervals on different days never collide.
// On the same day they collide on a partial overlap from either side, when one contains
// the other, or when both share start and end (exact duplicates conflict even when empty).
// Touching ends, such as 08:00-09:00 and 09:00-10:00, do not collide.
func Overlaps(a, b Interval) bool {
	if a.Day != b.Day {
		return false
	}
	if a.Start == b.Start && a.End == b.End {
		return true
	}
	return a.Start < b.End && b.Start < a.End
}
