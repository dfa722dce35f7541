package segment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/segment"
)

func anchor(toCity, arr string) *segment.Segment {
	return &segment.Segment{
		ID:       "anchor",
		TeamID:   "A",
		LegNo:    2,
		Type:     segment.TypeTrain,
		FromCity: "Madrid",
		ToCity:   toCity,
		DepTime:  "2025-10-27T08:00:00Z",
		ArrTime:  arr,
	}
}

func TestBuildPresetOvernight(t *testing.T) {
	tests := []struct {
		name    string
		arrival string
		wantDep string
		wantArr string
	}{
		{"before 20:00", "2025-10-27T17:45:00Z", "2025-10-27T20:00:00Z", "2025-10-28T06:00:00Z"},
		{"exactly 20:00", "2025-10-27T20:00:00Z", "2025-10-27T20:00:00Z", "2025-10-28T06:00:00Z"},
		{"after 20:00", "2025-10-27T21:15:00Z", "2025-10-28T20:00:00Z", "2025-10-29T06:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, def, err := segment.BuildPresetSegment(segment.PresetOvernight, segment.PresetContext{
				TeamID:      "A",
				LegNo:       2,
				LastSegment: anchor("Porto", tt.arrival),
			})
			require.NoError(t, err)
			assert.Equal(t, segment.PresetOvernight, def.ID)
			assert.Equal(t, segment.TypeOvernight, in.Type)
			assert.Equal(t, tt.wantDep, in.DepTime)
			assert.Equal(t, tt.wantArr, in.ArrTime)
			assert.Equal(t, "Porto", in.FromCity)
			assert.Equal(t, "Porto", in.ToCity)
		})
	}
}

func TestBuildPresetBreak(t *testing.T) {
	in, _, err := segment.BuildPresetSegment(segment.PresetBreak, segment.PresetContext{
		TeamID:      "A",
		LegNo:       2,
		LastSegment: anchor("Lisbon", "2025-10-27T18:00:00Z"),
	})
	require.NoError(t, err)
	assert.Equal(t, segment.TypeBreak, in.Type)
	assert.Equal(t, "Lisbon", in.FromCity)
	assert.Equal(t, "Lisbon", in.ToCity)
	assert.Equal(t, "2025-10-27T18:00:00Z", in.DepTime)
	assert.Equal(t, "2025-10-27T19:00:00Z", in.ArrTime)
	assert.Equal(t, "Mandatory break", in.Notes)
	assert.Equal(t, segment.TeamID("A"), in.TeamID)
	assert.Equal(t, segment.LegNo(2), in.LegNo)
}

func TestBuildPresetDurations(t *testing.T) {
	tests := []struct {
		id      segment.PresetID
		wantArr string
	}{
		{segment.PresetWaiting, "2025-10-27T18:30:00Z"},
		{segment.PresetJob, "2025-10-27T20:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			in, _, err := segment.BuildPresetSegment(tt.id, segment.PresetContext{
				TeamID:      "A",
				LegNo:       2,
				LastSegment: anchor("Lisbon", "2025-10-27T18:00:00.000Z"),
			})
			require.NoError(t, err)
			assert.Equal(t, "2025-10-27T18:00:00Z", in.DepTime)
			assert.Equal(t, tt.wantArr, in.ArrTime)
		})
	}
}

func TestBuildPresetFailures(t *testing.T) {
	_, _, err := segment.BuildPresetSegment("nap", segment.PresetContext{LastSegment: anchor("Lisbon", "2025-10-27T18:00:00Z")})
	assert.ErrorIs(t, err, segment.ErrUnknownPreset)

	_, _, err = segment.BuildPresetSegment(segment.PresetBreak, segment.PresetContext{})
	assert.ErrorIs(t, err, segment.ErrNoAnchor)

	_, _, err = segment.BuildPresetSegment(segment.PresetBreak, segment.PresetContext{LastSegment: anchor("  ", "2025-10-27T18:00:00Z")})
	assert.ErrorIs(t, err, segment.ErrAnchorNoCity)

	_, _, err = segment.BuildPresetSegment(segment.PresetBreak, segment.PresetContext{LastSegment: anchor("Lisbon", "later")})
	assert.ErrorIs(t, err, segment.ErrAnchorBadArrive)
}

func TestPresetsCatalogue(t *testing.T) {
	presets := segment.Presets()
	require.Len(t, presets, 4)
	assert.Equal(t, segment.PresetBreak, presets[0].ID)

	def, ok := segment.LookupPreset(segment.PresetJob)
	assert.True(t, ok)
	assert.Equal(t, segment.TypeJob, def.Type)

	_, ok = segment.LookupPreset("missing")
	assert.False(t, ok)
}
