package segment

import (
	"slices"
	"strings"

	"tracker/libs/timeutil"
)

// Compare is the ordering used for re-sequencing and metrics:
// orderIdx, then depTime, then arrTime, then id.
func Compare(a, b Segment) int {
	if a.OrderIdx != b.OrderIdx {
		if a.OrderIdx < b.OrderIdx {
			return -1
		}
		return 1
	}
	if c := timeutil.CompareISO(a.DepTime, b.DepTime); c != 0 {
		return c
	}
	if c := timeutil.CompareISO(a.ArrTime, b.ArrTime); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// Sorted returns a sorted copy and leaves the input untouched.
func Sorted(segments []Segment) []Segment {
	out := Clone(segments)
	slices.SortStableFunc(out, Compare)
	return out
}
