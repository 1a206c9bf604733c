package extraction

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// BinaryRecoverer rebuilds a grid from spreadsheet bytes without a format
// decoder by scanning for UTF-16LE encoded ASCII text.
type BinaryRecoverer struct{}

func (b *BinaryRecoverer) Name() string { return "binary" }

func (b *BinaryRecoverer) Extract(ctx context.Context, data []byte) (RecoveryResult, error) {
	if err := ctx.Err(); err != nil {
		return RecoveryResult{}, err
	}
	return RecoverGrid(data), nil
}

// rawCell is a recovered text segment with its position in the rebuilt grid.
type rawCell struct {
	Text string
	Row  int
	Col  int
}

const (
	minSegmentLen   = 3
	forceBreakCells = 5
)

var (
	smallIntRe  = regexp.MustCompile(`^\d{1,4}$`)
	dateTokenRe = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`)
)

// RecoverGrid scans data for UTF-16LE printable runs and reconstructs rows.
// It never panics; unrecognisable input yields an empty grid.
func RecoverGrid(data []byte) (result RecoveryResult) {
	result.Source = "binary"
	defer func() {
		if r := recover(); r != nil {
			result = RecoveryResult{
				Source:   "binary",
				Warnings: []string{fmt.Sprintf("binary recovery aborted: %v", r)},
			}
		}
	}()

	segments := dedupeSegments(scanUTF16Runs(data))
	cells, truncated := placeSegments(segments)
	result.Truncated = truncated
	result.Grid = cellsToGrid(cells)
	if truncated {
		result.Warnings = append(result.Warnings, fmt.Sprintf("binary recovery stopped at %d rows; data may be incomplete", MaxGridRows))
	}
	return result
}

// scanUTF16Runs returns contiguous runs of (printable byte, 0x00) pairs.
// CR and LF pairs count as run content so row markers survive.
func scanUTF16Runs(data []byte) []string {
	var runs []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			runs = append(runs, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(data); {
		c := data[i]
		if i+1 < len(data) && data[i+1] == 0x00 && (isPrintableASCII(c) || c == '\n' || c == '\r') {
			cur.WriteByte(c)
			i += 2
			continue
		}
		flush()
		i++
	}
	flush()
	return runs
}

func isPrintableASCII(c byte) bool {
	return c >= 0x20 && c <= 0x7E
}

// dedupeSegments keeps the first occurrence of each segment and drops
// segments whose visible text is too short to carry meaning.
func dedupeSegments(runs []string) []string {
	seen := make(map[string]struct{}, len(runs))
	out := make([]string, 0, len(runs))
	for _, run := range runs {
		if len(strings.TrimSpace(run)) < minSegmentLen {
			continue
		}
		if _, ok := seen[run]; ok {
			continue
		}
		seen[run] = struct{}{}
		out = append(out, run)
	}
	return out
}

// placeSegments assigns each segment a row and column. A segment opens a new
// row when it carries a line break, looks like a row key (small integer or
// date) once the first row is done, or when a dense row has grown past
// forceBreakCells cells. Titles and headers often carry years or account
// numbers, so row keys never split the first row.
func placeSegments(segments []string) ([]rawCell, bool) {
	var cells []rawCell
	row, col := 0, 0
	for _, seg := range segments {
		text := cleanSegment(seg)
		if text == "" {
			continue
		}
		if col > 0 && startsRow(seg, text, row, col) {
			if row+1 >= MaxGridRows {
				return cells, true
			}
			row++
			col = 0
		}
		cells = append(cells, rawCell{Text: text, Row: row, Col: col})
		col++
	}
	return cells, false
}

func startsRow(seg, text string, row, col int) bool {
	if strings.ContainsAny(seg, "\r\n") {
		return true
	}
	if row > 0 && (smallIntRe.MatchString(text) || dateTokenRe.MatchString(text)) {
		return true
	}
	return col > forceBreakCells && (hasAmountSignal(text) || len(text) > forceBreakCells)
}

func cleanSegment(seg string) string {
	seg = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(seg)
	return strings.Join(strings.Fields(seg), " ")
}

func hasAmountSignal(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return strings.ContainsAny(s, "$£€₦¥")
}

func cellsToGrid(cells []rawCell) Grid {
	if len(cells) == 0 {
		return Grid{}
	}
	grid := make(Grid, cells[len(cells)-1].Row+1)
	for _, c := range cells {
		grid[c.Row] = append(grid[c.Row], c.Text)
	}
	out := grid[:0]
	for _, r := range grid {
		if len(r) > 0 {
			out = append(out, r)
		}
	}
	return out
}
