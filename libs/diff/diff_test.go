package diff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/segment"
)

func base() segment.Segment {
	return segment.Segment{
		ID:       "seg-1",
		TeamID:   "A",
		LegNo:    1,
		Type:     segment.TypeBus,
		FromCity: "Lisbon",
		ToCity:   "Porto",
		DepTime:  "2025-10-27T08:00:00Z",
		ArrTime:  "2025-10-27T10:00:00Z",
	}
}

func TestTimeComparerIgnoresRepresentation(t *testing.T) {
	differ := GetCustomDiffer()
	a := base()
	b := base()
	b.DepTime = "2025-10-27T10:00:00+02:00"
	b.ArrTime = "2025-10-27T10:00:00.000Z"
	b.Notes = "notes are not part of the window"

	changes, err := CompareSegments(differ, a, b)
	require.NoError(t, err)
	assert.False(t, changes.Any())
}

func TestCompareSegmentsFlagsChanges(t *testing.T) {
	differ := GetCustomDiffer()
	a := base()
	b := base()
	b.ArrTime = "2025-10-27T11:00:00Z"
	b.OrderIdx = 2
	b.Type = segment.TypeTrain

	changes, err := CompareSegments(differ, a, b)
	require.NoError(t, err)
	assert.Equal(t, WindowChanges{Time: true, Position: true, Type: true}, changes)
}

func TestCompareSegmentsUnparseableTimes(t *testing.T) {
	differ := GetCustomDiffer()
	a := base()
	a.DepTime = "draft"
	b := base()
	b.DepTime = "later"

	changes, err := CompareSegments(differ, a, b)
	require.NoError(t, err)
	assert.True(t, changes.Time)
	assert.False(t, changes.Position)
}

func TestTimeComparerMatch(t *testing.T) {
	differ := GetCustomDiffer()
	type pair struct {
		At time.Time `diff:"at"`
	}
	cl, err := differ.Diff(pair{At: time.Unix(0, 0)}, pair{At: time.Unix(60, 0)})
	require.NoError(t, err)
	require.Len(t, cl, 1)
	assert.Equal(t, []string{"at"}, cl[0].Path)
}
