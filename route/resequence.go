package route

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"tracker/segment"
)

// NewSegmentID returns an id of the form "<team>-LEG<leg>-<6 uppercase hex chars>".
func NewSegmentID(teamID segment.TeamID, legNo segment.LegNo) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("%s-LEG%d-%s", teamID, legNo, suffix)
}

// Resequence renumbers one group so its orderIdx values are 0..n-1, ordered by
// segment.Compare. Slice positions are preserved and other groups are untouched.
func Resequence(segments []segment.Segment, teamID segment.TeamID, legNo segment.LegNo) []segment.Segment {
	out := segment.Clone(segments)
	positions := make([]int, 0)
	for i, s := range out {
		if s.TeamID == teamID && s.LegNo == legNo {
			positions = append(positions, i)
		}
	}
	slices.SortStableFunc(positions, func(a, b int) int {
		return segment.Compare(out[a], out[b])
	})
	for idx, pos := range positions {
		out[pos].OrderIdx = idx
	}
	return out
}

// ResequenceAll renumbers every group present in segments.
func ResequenceAll(segments []segment.Segment) []segment.Segment {
	out := segment.Clone(segments)
	seen := make(map[segment.GroupKey]bool)
	for _, s := range segments {
		key := s.Group()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = Resequence(out, key.TeamID, key.LegNo)
	}
	return out
}

// IsDense reports whether every group's orderIdx values are exactly 0..n-1.
func IsDense(segments []segment.Segment) bool {
	groups := make(map[segment.GroupKey][]int)
	for _, s := range segments {
		groups[s.Group()] = append(groups[s.Group()], s.OrderIdx)
	}
	for _, idxs := range groups {
		slices.Sort(idxs)
		for want, got := range idxs {
			if want != got {
				return false
			}
		}
	}
	return true
}

func nextOrderIndex(segments []segment.Segment, key segment.GroupKey, skipID string) int {
	next := 0
	for _, s := range segments {
		if s.Group() == key && s.ID != skipID && s.OrderIdx+1 > next {
			next = s.OrderIdx + 1
		}
	}
	return next
}

// groupOrder returns the ids of one group sorted by segment.Compare.
func groupOrder(segments []segment.Segment, key segment.GroupKey) []string {
	group := segment.Sorted(segment.FilterGroup(segments, key.TeamID, key.LegNo))
	ids := make([]string, len(group))
	for i, s := range group {
		ids[i] = s.ID
	}
	return ids
}

// assignOrder sets orderIdx from the position of each id in ids.
func assignOrder(segments []segment.Segment, ids []string) {
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	for i := range segments {
		if idx, ok := pos[segments[i].ID]; ok {
			segments[i].OrderIdx = idx
		}
	}
}
