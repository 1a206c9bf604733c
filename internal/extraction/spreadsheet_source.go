package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SpreadsheetSource decodes OOXML workbooks with excelize. The first sheet
// holding at least two non-empty rows is used.
type SpreadsheetSource struct{}

func (s *SpreadsheetSource) Name() string { return "spreadsheet" }

func (s *SpreadsheetSource) Extract(ctx context.Context, data []byte) (RecoveryResult, error) {
	if err := ctx.Err(); err != nil {
		return RecoveryResult{}, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return RecoveryResult{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return RecoveryResult{}, fmt.Errorf("no sheets found")
	}

	result := RecoveryResult{Source: s.Name()}
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("sheet %q: %v", sheet, err))
			continue
		}
		grid, truncated := trimGrid(rows)
		if len(grid) < 2 {
			continue
		}
		result.Grid = grid
		result.Truncated = truncated
		if len(sheets) > 1 {
			result.Source = s.Name() + ":" + sheet
		}
		return result, nil
	}
	return result, nil
}

// trimGrid trims cell whitespace, drops blank rows and applies MaxGridRows.
func trimGrid(rows [][]string) (Grid, bool) {
	grid := make(Grid, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(row))
		blank := true
		for i, c := range row {
			cells[i] = strings.TrimSpace(c)
			if cells[i] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		if len(grid) == MaxGridRows {
			return grid, true
		}
		grid = append(grid, trimTrailingEmpty(cells))
	}
	return grid, false
}

func trimTrailingEmpty(cells []string) []string {
	n := len(cells)
	for n > 0 && cells[n-1] == "" {
		n--
	}
	return cells[:n]
}
