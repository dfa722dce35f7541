package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"tracker/libs/timeutil"
	"tracker/persist"
	"tracker/segment"
)

var (
	bold  = color.New(color.Bold, color.Underline).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
)

var statusColors = map[persist.Status]*color.Color{
	persist.StatusIdle:    color.New(color.Faint),
	persist.StatusQueued:  color.New(color.FgYellow),
	persist.StatusSaving:  color.New(color.FgHiYellow),
	persist.StatusSaved:   color.New(color.FgGreen),
	persist.StatusOffline: color.New(color.FgMagenta),
	persist.StatusError:   color.New(color.FgRed, color.Bold),
}

func formatCost(s segment.Segment) string {
	if s.Cost == nil {
		return "-"
	}
	return strconv.FormatFloat(*s.Cost, 'f', 2, 64) + " " + s.Currency
}

func formatSpan(s segment.Segment) string {
	d, ok := timeutil.Between(s.DepTime, s.ArrTime)
	if !ok {
		return "?"
	}
	return timeutil.FormatDuration(d)
}

// groupTable renders one team/leg in display order.
func groupTable(group []segment.Segment) *uitable.Table {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 40
	tbl.AddRow(bold("#"), bold("ID"), bold("Type"), bold("Route"), bold("Dep"), bold("Arr"), bold("Span"), bold("Cost"))
	for _, s := range segment.Sorted(group) {
		tbl.AddRow(
			s.OrderIdx+1,
			s.ID,
			s.Type,
			fmt.Sprintf("%s → %s", s.FromCity, s.ToCity),
			timeutil.FormatUTCDateTime(s.DepTime),
			timeutil.FormatUTCDateTime(s.ArrTime),
			formatSpan(s),
			formatCost(s),
		)
	}
	return tbl
}

func metricsLine(m segment.LegMetrics) string {
	eta, last := "-", "-"
	if m.ETA != nil {
		eta = timeutil.FormatUTCDateTime(*m.ETA)
	}
	if m.LastCity != nil {
		last = *m.LastCity
	}
	return fmt.Sprintf("movement %s, total %s, eta %s, last city %s",
		timeutil.FormatDurationMs(m.ElapsedMovementMs), timeutil.FormatDurationMs(m.ElapsedTotalMs), eta, last)
}

// printSegments prints every non-empty group, teams and legs in catalogue order.
func printSegments(w io.Writer, all []segment.Segment, filter segment.GroupKey, opts segment.MetricsOptions) {
	printed := 0
	for _, team := range segment.TeamIDs {
		if filter.TeamID != "" && filter.TeamID != team {
			continue
		}
		for _, leg := range segment.LegNumbers {
			if filter.LegNo != 0 && filter.LegNo != leg {
				continue
			}
			group := segment.FilterGroup(all, team, leg)
			if len(group) == 0 {
				continue
			}
			_, _ = fmt.Fprintln(w, bold(fmt.Sprintf("Team %s, leg %d", team, leg)))
			_, _ = fmt.Fprintln(w, groupTable(group))
			_, _ = fmt.Fprintln(w, faint(metricsLine(segment.CalculateLegMetrics(group, opts))))
			_, _ = fmt.Fprintln(w)
			printed++
		}
	}
	if printed == 0 {
		_, _ = fmt.Fprintln(w, faint("no segments"))
	}
}

func printSegment(w io.Writer, verb string, s segment.Segment) {
	_, _ = fmt.Fprintf(w, "%s %s: %s %s → %s (%s → %s), position %d\n",
		verb, s.ID, s.Type, s.FromCity, s.ToCity,
		timeutil.FormatUTCDateTime(s.DepTime), timeutil.FormatUTCDateTime(s.ArrTime), s.OrderIdx+1)
}

func printState(state persist.State) {
	writeState(color.Output, state)
}

func writeState(w io.Writer, state persist.State) {
	c, ok := statusColors[state.Status]
	if !ok {
		c = color.New()
	}
	_, _ = fmt.Fprintf(w, "%s %s\n", bold("Sync"), c.Sprint(state.Status))

	tbl := uitable.New()
	tbl.Separator = "  "
	lastSaved := "never"
	if state.LastSavedAt != "" {
		lastSaved = timeutil.FormatUTCDateTime(state.LastSavedAt)
	}
	tbl.AddRow("last saved", lastSaved)
	tbl.AddRow("outbox", state.OutboxSize)
	if state.SyncError != "" {
		tbl.AddRow("error", color.RedString(state.SyncError))
	}
	_, _ = fmt.Fprintln(w, tbl)

	if state.Conflict == nil {
		return
	}
	_, _ = fmt.Fprintln(w, bold("Conflict"))
	local := state.Conflict.LocalUpdatedAt
	if local == "" {
		local = "none"
	} else {
		local = timeutil.FormatUTCDateTime(local)
	}
	_, _ = fmt.Fprintf(w, "cloud %s, local %s\n", timeutil.FormatUTCDateTime(state.Conflict.RemoteUpdatedAt), local)
	lines := persist.DescribeConflict(*state.Conflict, persist.DefaultSummaryLimit)
	if len(lines) == 0 {
		_, _ = fmt.Fprintln(w, faint("cloud and local segments have the same windows"))
	}
	for _, line := range lines {
		_, _ = fmt.Fprintf(w, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w, faint("run `route-tracker resolve --accept-remote` or `--keep-local`"))
}
