package segment

import (
	"fmt"
	"strconv"
	"strings"

	"tracker/libs/timeutil"
)

// CSVColumns is the expected header of an import file.
var CSVColumns = []string{"team", "leg", "type", "from", "to", "dep", "arr", "cost", "currency", "notes"}

// ParseCSVToInputs parses csv content (header row first) into segment inputs.
// Cost, currency and notes may be blank.
func ParseCSVToInputs(csvContent [][]string) ([]Input, error) {
	if len(csvContent) == 0 {
		return nil, fmt.Errorf("CSV is empty")
	}

	// skip the header row
	dataRows := csvContent[1:]

	var inputs []Input
	for i, row := range dataRows {
		line := i + 2
		if len(row) != len(CSVColumns) {
			return nil, fmt.Errorf("row %d: expected %d columns, but got %d", line, len(CSVColumns), len(row))
		}
		for j := range row {
			row[j] = strings.TrimSpace(row[j])
		}

		leg, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: failed to convert leg '%s' to int: %w", line, row[1], err)
		}

		in := Input{
			TeamID:   TeamID(strings.ToUpper(row[0])),
			LegNo:    LegNo(leg),
			Type:     Type(row[2]),
			FromCity: row[3],
			ToCity:   row[4],
			DepTime:  timeutil.NormaliseISOString(row[5]),
			ArrTime:  timeutil.NormaliseISOString(row[6]),
			Currency: row[8],
			Notes:    row[9],
		}
		if row[7] != "" {
			cost, err := strconv.ParseFloat(row[7], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: failed to convert cost '%s' to float: %w", line, row[7], err)
			}
			in.Cost = &cost
		}
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		inputs = append(inputs, in)
	}

	return inputs, nil
}
