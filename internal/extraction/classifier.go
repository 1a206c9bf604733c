package extraction

import (
	"fmt"
	"strings"
)

// headerScanRows is how many leading rows FindHeaderRow inspects.
const headerScanRows = 10

var headerKeywords = []string{
	"date", "description", "amount", "balance", "debit", "credit",
	"type", "ref", "transaction", "details", "narrative",
}

// FindHeaderRow returns the first row among the leading rows that matches at
// least two distinct header keywords. When none qualifies it returns (0, false)
// and callers proceed with row 0 as a best guess.
func FindHeaderRow(grid Grid) (int, bool) {
	for i := 0; i < len(grid) && i < headerScanRows; i++ {
		if headerScore(grid[i]) >= 2 {
			return i, true
		}
	}
	return 0, false
}

func headerScore(row []string) int {
	matched := make(map[string]bool)
	for _, cell := range row {
		c := strings.ToLower(cell)
		for _, kw := range headerKeywords {
			if strings.Contains(c, kw) {
				matched[kw] = true
			}
		}
	}
	return len(matched)
}

// IsNoiseRow reports whether a row is a summary, balance line or reprinted
// header rather than a transaction.
func IsNoiseRow(cells []string) bool {
	var moneyIn, moneyOut, transaction, description bool
	for _, cell := range cells {
		c := strings.ToLower(strings.TrimSpace(cell))
		if c == "" {
			continue
		}
		if strings.Contains(c, "summary") || strings.Contains(c, "balance") || strings.Contains(c, "date/time") {
			return true
		}
		if c == "debit" || c == "credit" {
			return true
		}
		moneyIn = moneyIn || strings.Contains(c, "money in")
		moneyOut = moneyOut || strings.Contains(c, "money out")
		transaction = transaction || strings.Contains(c, "transaction")
		description = description || strings.Contains(c, "description")
	}
	return (moneyIn && moneyOut) || (transaction && description)
}

// IsTransactionRow reports whether a row survives classification: it is not
// noise and its normalized candidate has a description or a non-zero amount.
func IsTransactionRow(cells []string, candidate CanonicalTransaction) bool {
	if IsNoiseRow(cells) {
		return false
	}
	return candidate.HasDescription() || candidate.Amount != 0
}

// HeaderLabels turns a header row into unique, non-empty labels.
func HeaderLabels(row []string, width int) []string {
	if width < len(row) {
		width = len(row)
	}
	labels := make([]string, width)
	seen := make(map[string]int, width)
	for i := 0; i < width; i++ {
		label := ""
		if i < len(row) {
			label = strings.TrimSpace(row[i])
		}
		if label == "" {
			label = fmt.Sprintf("Column %d", i+1)
		}
		seen[label]++
		if n := seen[label]; n > 1 {
			label = fmt.Sprintf("%s (%d)", label, n)
		}
		labels[i] = label
	}
	return labels
}

// RowsToRecords converts the rows after headerIdx into header-keyed records.
// Every header column and every cell is kept; cells beyond the header width
// get "Column N" keys only on the rows that have them. Blank rows are skipped.
func RowsToRecords(grid Grid, headerIdx int) []*ProvenanceMap {
	if headerIdx < 0 || headerIdx >= len(grid) {
		return nil
	}
	header := grid[headerIdx]
	width := 0
	for _, row := range grid[headerIdx:] {
		if len(row) > width {
			width = len(row)
		}
	}
	labels := HeaderLabels(header, width)

	var records []*ProvenanceMap
	for _, row := range grid[headerIdx+1:] {
		if isBlankRow(row) {
			continue
		}
		rec := NewProvenanceMap()
		for i, label := range labels[:max(len(header), len(row))] {
			v := ""
			if i < len(row) {
				v = strings.TrimSpace(row[i])
			}
			rec.Set(label, v)
		}
		records = append(records, rec)
	}
	return records
}

// recordCells renders a record's values in column order for row-level checks.
func recordCells(rec *ProvenanceMap) []string {
	keys := rec.Keys()
	cells := make([]string, len(keys))
	for i, k := range keys {
		cells[i] = rec.Text(k)
	}
	return cells
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
