package segment

import (
	"strings"

	"tracker/libs/timeutil"
)

// MetricsOptions selects an optional checkpoint city for the ETA.
type MetricsOptions struct {
	CheckpointCity string
}

// LegMetrics summarises an ordered set of segments. ETA and LastCity are nil when unknown.
type LegMetrics struct {
	ElapsedMovementMs int64   `json:"elapsedMovementMs"`
	ElapsedTotalMs    int64   `json:"elapsedTotalMs"`
	ETA               *string `json:"etaIso"`
	LastCity          *string `json:"lastCity"`
}

// ElapsedDurations sums positive segment durations, split into movement and total.
func ElapsedDurations(segments []Segment) (movementMs, totalMs int64) {
	for _, s := range segments {
		d, ok := timeutil.Between(s.DepTime, s.ArrTime)
		if !ok || d <= 0 {
			continue
		}
		ms := d.Milliseconds()
		totalMs += ms
		if s.Type.IsMovement() {
			movementMs += ms
		}
	}
	return movementMs, totalMs
}

// ETA returns the arrival of the last segment reaching the checkpoint city, or the arrival
// of the last segment overall when no checkpoint matches. Input must already be sorted.
func ETA(sorted []Segment, checkpointCity string) string {
	if len(sorted) == 0 {
		return ""
	}
	target := strings.ToLower(strings.TrimSpace(checkpointCity))
	if target != "" {
		for i := len(sorted) - 1; i >= 0; i-- {
			if strings.ToLower(strings.TrimSpace(sorted[i].ToCity)) == target {
				return sorted[i].ArrTime
			}
		}
	}
	return sorted[len(sorted)-1].ArrTime
}

// CalculateLegMetrics derives elapsed times, ETA and last city. The sort is local and never written back.
func CalculateLegMetrics(segments []Segment, opts MetricsOptions) LegMetrics {
	if len(segments) == 0 {
		return LegMetrics{}
	}
	sorted := Sorted(segments)
	movement, total := ElapsedDurations(sorted)

	metrics := LegMetrics{
		ElapsedMovementMs: movement,
		ElapsedTotalMs:    total,
	}
	if eta := ETA(sorted, opts.CheckpointCity); eta != "" {
		metrics.ETA = &eta
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		if city := strings.TrimSpace(sorted[i].ToCity); city != "" {
			lastCity := sorted[i].ToCity
			metrics.LastCity = &lastCity
			break
		}
	}
	return metrics
}
