package cmd

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tracker/segment"
)

func importCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "append segments from a CSV file",
		Long: `Reads a CSV file whose header is
team,leg,type,from,to,dep,arr,cost,currency,notes
and appends every row. Nothing is added when any row is rejected.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputFile, _ := cmd.Flags().GetString("input")
			if inputFile == "" {
				return cmd.Help()
			}
			inputs, err := readCSVInputs(inputFile)
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), func(s *session) error {
				if err := checkBatch(inputs, s.store.Segments()); err != nil {
					return err
				}
				for _, in := range inputs {
					s.store.AddSegment(in)
				}
				_, _ = fmt.Fprintf(color.Output, "imported %d segments from %s\n", len(inputs), inputFile)
				return nil
			})
		},
	}

	cmd.Flags().StringP("input", "i", "", "Input CSV file")

	return cmd
}

func readCSVInputs(path string) ([]segment.Input, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return segment.ParseCSVToInputs(records)
}

// checkBatch validates rows in file order, each against the segments plus the rows before it.
func checkBatch(inputs []segment.Input, existing []segment.Segment) error {
	pending := segment.Clone(existing)
	for i, in := range inputs {
		if err := checkInput(in, pending, ""); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		pending = append(pending, segment.Segment{
			ID:      fmt.Sprintf("pending-%d", i),
			TeamID:  in.TeamID,
			LegNo:   in.LegNo,
			DepTime: in.DepTime,
			ArrTime: in.ArrTime,
		})
	}
	return nil
}
