package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	dbt "tracker/db/db"
	"tracker/libs/timeutil"
	"tracker/segment"
)

var errNoUndo = errors.New("nothing to undo")

// segmentFlags are the editable fields shared by add and update.
type segmentFlags struct {
	team     string
	leg      int
	kind     string
	from     string
	to       string
	dep      string
	arr      string
	cost     float64
	currency string
	notes    string
}

func (f *segmentFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.team, "team", "t", "", "team id (A-E)")
	fs.IntVarP(&f.leg, "leg", "l", 0, "leg number (1-6)")
	fs.StringVar(&f.kind, "type", "", "segment type, e.g. bus, train, break")
	fs.StringVar(&f.from, "from", "", "departure city")
	fs.StringVar(&f.to, "to", "", "arrival city")
	fs.StringVar(&f.dep, "dep", "", "departure time, ISO 8601")
	fs.StringVar(&f.arr, "arr", "", "arrival time, ISO 8601")
	fs.Float64Var(&f.cost, "cost", 0, "cost of the segment")
	fs.StringVar(&f.currency, "currency", "", "cost currency")
	fs.StringVar(&f.notes, "notes", "", "free text notes")
}

func (f *segmentFlags) input(fs *pflag.FlagSet) segment.Input {
	in := segment.Input{
		TeamID:   segment.TeamID(strings.ToUpper(f.team)),
		LegNo:    segment.LegNo(f.leg),
		Type:     segment.Type(f.kind),
		FromCity: strings.TrimSpace(f.from),
		ToCity:   strings.TrimSpace(f.to),
		DepTime:  timeutil.NormaliseISOString(f.dep),
		ArrTime:  timeutil.NormaliseISOString(f.arr),
		Currency: strings.ToUpper(f.currency),
		Notes:    f.notes,
	}
	if fs.Changed("cost") {
		cost := f.cost
		in.Cost = &cost
	}
	return in
}

// changes keeps only the flags given on the command line.
func (f *segmentFlags) changes(fs *pflag.FlagSet) segment.Changes {
	var c segment.Changes
	if fs.Changed("team") {
		team := segment.TeamID(strings.ToUpper(f.team))
		c.TeamID = &team
	}
	if fs.Changed("leg") {
		leg := segment.LegNo(f.leg)
		c.LegNo = &leg
	}
	if fs.Changed("type") {
		kind := segment.Type(f.kind)
		c.Type = &kind
	}
	if fs.Changed("from") {
		from := strings.TrimSpace(f.from)
		c.FromCity = &from
	}
	if fs.Changed("to") {
		to := strings.TrimSpace(f.to)
		c.ToCity = &to
	}
	if fs.Changed("dep") {
		dep := timeutil.NormaliseISOString(f.dep)
		c.DepTime = &dep
	}
	if fs.Changed("arr") {
		arr := timeutil.NormaliseISOString(f.arr)
		c.ArrTime = &arr
	}
	if fs.Changed("cost") {
		cost := f.cost
		c.Cost = &cost
	}
	if fs.Changed("currency") {
		currency := strings.ToUpper(f.currency)
		c.Currency = &currency
	}
	if fs.Changed("notes") {
		notes := f.notes
		c.Notes = &notes
	}
	return c
}

func inputOf(s segment.Segment) segment.Input {
	return segment.Input{
		TeamID:   s.TeamID,
		LegNo:    s.LegNo,
		Type:     s.Type,
		FromCity: s.FromCity,
		ToCity:   s.ToCity,
		DepTime:  s.DepTime,
		ArrTime:  s.ArrTime,
		Cost:     s.Cost,
		Currency: s.Currency,
		Notes:    s.Notes,
	}
}

// checkInput runs field and timing validation against the current segments.
func checkInput(in segment.Input, all []segment.Segment, ignoreID string) error {
	if err := in.Validate(); err != nil {
		return err
	}
	siblings := segment.FilterGroup(all, in.TeamID, in.LegNo)
	issues := segment.ValidateTiming(segment.CandidateFromInput(in), siblings, segment.ValidateOptions{IgnoreID: ignoreID})
	return segment.IssuesError(issues)
}

func groupFlags(cmd *cobra.Command) (segment.GroupKey, error) {
	team, _ := cmd.Flags().GetString("team")
	leg, _ := cmd.Flags().GetInt("leg")
	key := segment.GroupKey{TeamID: segment.TeamID(strings.ToUpper(team)), LegNo: segment.LegNo(leg)}
	if key.TeamID != "" && !key.TeamID.Valid() {
		return key, fmt.Errorf("unknown team %q", team)
	}
	if key.LegNo != 0 && !key.LegNo.Valid() {
		return key, fmt.Errorf("unknown leg %d", leg)
	}
	return key, nil
}

func segmentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "segments",
		Aliases: []string{"seg"},
		Short:   "list and edit route segments",
	}
	cmd.AddCommand(
		segmentsListCommand(),
		segmentsAddCommand(),
		segmentsUpdateCommand(),
		segmentsDeleteCommand(),
		segmentsReorderCommand(),
		segmentsUndoCommand(),
	)
	return cmd
}

func segmentsListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "show segments per team and leg with leg metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := groupFlags(cmd)
			if err != nil {
				return err
			}
			checkpoint, _ := cmd.Flags().GetString("checkpoint")
			return withSession(cmd.Context(), func(s *session) error {
				printSegments(color.Output, s.store.Segments(), key, segment.MetricsOptions{CheckpointCity: checkpoint})
				if state := s.pipeline.State(); state.Conflict != nil || state.SyncError != "" {
					printState(state)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringP("team", "t", "", "only show this team")
	cmd.Flags().IntP("leg", "l", 0, "only show this leg")
	cmd.Flags().String("checkpoint", "", "city used for the eta")
	return cmd
}

func segmentsAddCommand() *cobra.Command {
	flags := &segmentFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "append a segment to a team's leg",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := flags.input(cmd.Flags())
			return withSession(cmd.Context(), func(s *session) error {
				if err := checkInput(in, s.store.Segments(), ""); err != nil {
					return err
				}
				printSegment(color.Output, "added", s.store.AddSegment(in))
				return nil
			})
		},
	}
	flags.register(cmd.Flags())
	for _, name := range []string{"team", "leg", "type", "dep", "arr"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func segmentsUpdateCommand() *cobra.Command {
	flags := &segmentFlags{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "change fields of a segment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes := flags.changes(cmd.Flags())
			return withSession(cmd.Context(), func(s *session) error {
				current, ok := s.store.Get(args[0])
				if !ok {
					return fmt.Errorf("segment %s not found", args[0])
				}
				if err := checkInput(inputOf(changes.Apply(current)), s.store.Segments(), current.ID); err != nil {
					return err
				}
				updated, _ := s.store.UpdateSegment(current.ID, changes)
				printSegment(color.Output, "updated", updated)
				return nil
			})
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func segmentsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "remove a segment, undo restores it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session) error {
				removed, index, ok := s.store.DeleteSegment(args[0])
				if !ok {
					return fmt.Errorf("segment %s not found", args[0])
				}
				if err := s.local.WriteUndo(cmd.Context(), dbt.UndoEntry{Segment: removed, Index: index}); err != nil {
					return fmt.Errorf("failed to remember deleted segment: %w", err)
				}
				printSegment(color.Output, "deleted", removed)
				return nil
			})
		},
	}
}

func segmentsReorderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <team> <leg> <id>...",
		Short: "set the order of a leg explicitly",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			team := segment.TeamID(strings.ToUpper(args[0]))
			leg, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid leg %q: %w", args[1], err)
			}
			ids := args[2:]
			return withSession(cmd.Context(), func(s *session) error {
				if err := checkReorder(s.store.Group(team, segment.LegNo(leg)), ids); err != nil {
					return err
				}
				s.store.ReorderSegments(team, segment.LegNo(leg), ids)
				printSegments(color.Output, s.store.Segments(), segment.GroupKey{TeamID: team, LegNo: segment.LegNo(leg)}, segment.MetricsOptions{})
				return nil
			})
		},
	}
}

// checkReorder rejects a permutation that is not exactly the group's ids.
func checkReorder(group []segment.Segment, ids []string) error {
	if len(ids) != len(group) {
		return fmt.Errorf("expected %d segment ids, got %d", len(group), len(ids))
	}
	known := make(map[string]bool, len(group))
	for _, s := range group {
		known[s.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return fmt.Errorf("segment %s is not part of this leg or is repeated", id)
		}
		delete(known, id)
	}
	return nil
}

func segmentsUndoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "restore the last deleted segment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session) error {
				restored, err := undoDelete(cmd.Context(), s)
				if err != nil {
					return err
				}
				printSegment(color.Output, "restored", restored)
				return nil
			})
		},
	}
}

func undoDelete(ctx context.Context, s *session) (segment.Segment, error) {
	entry, err := s.local.ReadUndo(ctx)
	if err != nil {
		return segment.Segment{}, err
	}
	if entry == nil {
		return segment.Segment{}, errNoUndo
	}
	// the entry is kept when the slot has been taken since the delete
	if err := checkInput(inputOf(entry.Segment), s.store.Segments(), entry.Segment.ID); err != nil {
		return segment.Segment{}, fmt.Errorf("cannot restore %s: %w", entry.Segment.ID, err)
	}
	restored := s.store.InsertSegment(entry.Segment, entry.Index)
	if err := s.local.ClearUndo(ctx); err != nil {
		return restored, fmt.Errorf("failed to clear undo entry: %w", err)
	}
	return restored, nil
}
