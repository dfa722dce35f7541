package segment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tracker/libs/timeutil"
)

// PresetID names a rule-derived segment.
type PresetID string

const (
	PresetBreak     PresetID = "break"
	PresetOvernight PresetID = "overnight"
	PresetWaiting   PresetID = "waiting"
	PresetJob       PresetID = "job"
)

const (
	overnightStartHour = 20
	overnightLength    = 10 * time.Hour
)

var (
	ErrUnknownPreset   = errors.New("unknown preset selected")
	ErrNoAnchor        = errors.New("add at least one segment before applying a preset")
	ErrAnchorNoCity    = errors.New("the previous segment must have a destination city to anchor the preset")
	ErrAnchorBadArrive = errors.New("the previous segment has an invalid arrival time")
)

// PresetDefinition describes one preset. Duration is zero for the overnight block.
type PresetDefinition struct {
	ID          PresetID      `json:"id"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Type        Type          `json:"type"`
	Duration    time.Duration `json:"duration"`
	Note        string        `json:"note"`
}

var presetOrder = []PresetID{PresetBreak, PresetOvernight, PresetWaiting, PresetJob}

var presetDefinitions = map[PresetID]PresetDefinition{
	PresetBreak: {
		ID:          PresetBreak,
		Label:       "Break · 60m",
		Description: "Mandatory rest window to reset fatigue timers.",
		Type:        TypeBreak,
		Duration:    60 * time.Minute,
		Note:        "Mandatory break",
	},
	PresetOvernight: {
		ID:          PresetOvernight,
		Label:       "Overnight · 20:00→06:00",
		Description: "Mandatory overnight stop from 20:00 UTC to 06:00 UTC.",
		Type:        TypeOvernight,
		Note:        "Overnight rest block",
	},
	PresetWaiting: {
		ID:          PresetWaiting,
		Label:       "Waiting · 30m",
		Description: "Buffer time when teams are waiting for a connection.",
		Type:        TypeWaiting,
		Duration:    30 * time.Minute,
		Note:        "Waiting for transport",
	},
	PresetJob: {
		ID:          PresetJob,
		Label:       "Job · 2h",
		Description: "Production or challenge job that pauses travel.",
		Type:        TypeJob,
		Duration:    120 * time.Minute,
		Note:        "Job / task requirement",
	},
}

// Presets lists the catalogue in display order.
func Presets() []PresetDefinition {
	out := make([]PresetDefinition, 0, len(presetOrder))
	for _, id := range presetOrder {
		out = append(out, presetDefinitions[id])
	}
	return out
}

// LookupPreset returns the definition for id.
func LookupPreset(id PresetID) (PresetDefinition, bool) {
	def, ok := presetDefinitions[id]
	return def, ok
}

// PresetContext anchors a preset to the last segment of a group. LastSegment may be nil.
type PresetContext struct {
	TeamID      TeamID
	LegNo       LegNo
	LastSegment *Segment
}

// BuildPresetSegment derives a new segment input from the group's last segment.
// The returned error is the user-facing reason when the preset cannot be applied.
// The result still has to pass ValidateTiming before it is committed.
func BuildPresetSegment(id PresetID, ctx PresetContext) (Input, PresetDefinition, error) {
	preset, ok := presetDefinitions[id]
	if !ok {
		return Input{}, PresetDefinition{}, ErrUnknownPreset
	}
	if ctx.LastSegment == nil {
		return Input{}, preset, ErrNoAnchor
	}
	baseCity := strings.TrimSpace(ctx.LastSegment.ToCity)
	if baseCity == "" {
		return Input{}, preset, ErrAnchorNoCity
	}
	anchor, ok := timeutil.ParseISO(ctx.LastSegment.ArrTime)
	if !ok {
		return Input{}, preset, ErrAnchorBadArrive
	}

	var start, end time.Time
	if preset.ID == PresetOvernight {
		// arrival at or before 20:00 keeps the same evening
		start = timeutil.SetUTCTime(anchor, overnightStartHour)
		if anchor.After(start) {
			start = timeutil.IncrementUTCDays(start, 1)
		}
		end = start.Add(overnightLength)
	} else {
		if preset.Duration <= 0 {
			return Input{}, preset, fmt.Errorf("preset %s is missing a duration", preset.ID)
		}
		start = anchor
		end = anchor.Add(preset.Duration)
	}

	return Input{
		TeamID:   ctx.TeamID,
		LegNo:    ctx.LegNo,
		Type:     preset.Type,
		FromCity: baseCity,
		ToCity:   baseCity,
		DepTime:  timeutil.NormaliseISO(start),
		ArrTime:  timeutil.NormaliseISO(end),
		Notes:    preset.Note,
	}, preset, nil
}
