package persist

import (
	"fmt"
	"log"
	"strings"

	"tracker/libs/diff"
	"tracker/libs/timeutil"
	"tracker/segment"
)

// DefaultSummaryLimit bounds DescribeConflict when limit is not positive.
const DefaultSummaryLimit = 5

var windowDiffer = diff.GetCustomDiffer()

// DescribeConflict lists what the cloud added, updated and removed relative to
// the local segments. Additions and updates follow the remote order, removals
// follow the local order, and at most limit lines are returned.
func DescribeConflict(c Conflict, limit int) []string {
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}
	local := make(map[string]segment.Segment, len(c.LocalSegments))
	for _, s := range c.LocalSegments {
		local[s.ID] = s
	}
	remote := make(map[string]bool, len(c.RemoteSegments))

	var summaries []string
	for _, r := range c.RemoteSegments {
		remote[r.ID] = true
		l, ok := local[r.ID]
		if !ok {
			summaries = append(summaries, fmt.Sprintf("Cloud added %s (%s)", label(r), window(r)))
			continue
		}

		changes, err := diff.CompareSegments(windowDiffer, l, r)
		if err != nil {
			log.Printf("[persist] failed to compare segment %s: %v", r.ID, err)
			continue
		}
		var parts []string
		if changes.Time {
			parts = append(parts, fmt.Sprintf("time %s→%s / %s→%s",
				timeutil.FormatUTCDateTime(l.DepTime), timeutil.FormatUTCDateTime(r.DepTime),
				timeutil.FormatUTCDateTime(l.ArrTime), timeutil.FormatUTCDateTime(r.ArrTime)))
		}
		if changes.Position {
			parts = append(parts, fmt.Sprintf("position %d→%d", l.OrderIdx+1, r.OrderIdx+1))
		}
		if changes.Type {
			parts = append(parts, fmt.Sprintf("type %s→%s", l.Type, r.Type))
		}
		if len(parts) > 0 {
			summaries = append(summaries, fmt.Sprintf("Cloud updated %s (%s)", label(r), strings.Join(parts, "; ")))
		}
	}

	for _, l := range c.LocalSegments {
		if !remote[l.ID] {
			summaries = append(summaries, fmt.Sprintf("Cloud removed %s (%s)", label(l), window(l)))
		}
	}

	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}

func label(s segment.Segment) string {
	return fmt.Sprintf("%s %s → %s", s.Type, s.FromCity, s.ToCity)
}

func window(s segment.Segment) string {
	return fmt.Sprintf("%s → %s", timeutil.FormatUTCDateTime(s.DepTime), timeutil.FormatUTCDateTime(s.ArrTime))
}
