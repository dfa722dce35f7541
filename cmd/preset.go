package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"tracker/libs/timeutil"
	"tracker/segment"
)

func presetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "rule-derived break, overnight, waiting and job blocks",
	}
	cmd.AddCommand(presetListCommand(), presetApplyCommand())
	return cmd
}

func presetListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "show the preset catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl := uitable.New()
			tbl.Separator = "  "
			tbl.Wrap = true
			tbl.MaxColWidth = 50
			tbl.AddRow(bold("ID"), bold("Label"), bold("Duration"), bold("Description"))
			for _, p := range segment.Presets() {
				duration := "until 06:00"
				if p.Duration > 0 {
					duration = timeutil.FormatDuration(p.Duration)
				}
				tbl.AddRow(p.ID, p.Label, duration, p.Description)
			}
			_, _ = fmt.Fprintln(color.Output, tbl)
			return nil
		},
	}
}

// buildPreset anchors a preset on the group's last segment and checks it fits.
func buildPreset(id segment.PresetID, all []segment.Segment, team segment.TeamID, leg segment.LegNo) (segment.Input, error) {
	group := segment.Sorted(segment.FilterGroup(all, team, leg))
	var last *segment.Segment
	if len(group) > 0 {
		last = &group[len(group)-1]
	}
	in, _, err := segment.BuildPresetSegment(id, segment.PresetContext{TeamID: team, LegNo: leg, LastSegment: last})
	if err != nil {
		return segment.Input{}, err
	}
	issues := segment.ValidateTiming(segment.CandidateFromInput(in), group, segment.ValidateOptions{})
	return in, segment.IssuesError(issues)
}

func presetApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <preset>",
		Short: "append a preset block after the last segment of a leg",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := groupFlags(cmd)
			if err != nil {
				return err
			}
			if key.TeamID == "" || key.LegNo == 0 {
				return fmt.Errorf("--team and --leg are required")
			}
			id := segment.PresetID(strings.ToLower(args[0]))
			return withSession(cmd.Context(), func(s *session) error {
				in, err := buildPreset(id, s.store.Segments(), key.TeamID, key.LegNo)
				if err != nil {
					return err
				}
				printSegment(color.Output, "added", s.store.AddSegment(in))
				return nil
			})
		},
	}
	cmd.Flags().StringP("team", "t", "", "team id (A-E)")
	cmd.Flags().IntP("leg", "l", 0, "leg number (1-6)")
	return cmd
}
