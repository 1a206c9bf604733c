package extraction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	maxTextBytes     = 512 * 1024 // cap for extracted text
	scannedThreshold = 50         // chars per page below which PDF is considered scanned
)

// PDFAnalysis contains the text layer of a PDF statement.
type PDFAnalysis struct {
	PageCount        int
	TextLines        []string
	EstimatedTxCount int
	IsScanned        bool
	Error            error
}

// datePattern matches DD/MM/YYYY variants, ISO dates and "Jan 15" / "15 Jan".
var datePattern = regexp.MustCompile(
	`(?i)` +
		`(?:\d{1,2}[/\-\.]\d{1,2}[/\-\.]\d{2,4})` +
		`|(?:\d{4}[/\-]\d{2}[/\-]\d{2})` +
		`|(?:\d{1,2}[\s\-](?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?(?:[\s\-]\d{2,4})?)` +
		`|(?:(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2})`,
)

var amountPattern = regexp.MustCompile(
	`[\$\-]?\d{1,3}(?:[,]\d{3})*(?:\.\d{1,2})` + // $1,234.56 or -1234.56
		`|\d+\.\d{2}`, // plain 123.45
)

var (
	cellGapPattern   = regexp.MustCompile(`\t+| {2,}`)
	leadingDate      = regexp.MustCompile(`^(` + datePattern.String() + `)\s+`)
	trailingAmounts  = regexp.MustCompile(`(?:\s+(?:\(?-?[\$£€₦]?\d[\d,]*\.\d{2}\)?(?:\s?(?:CR|DR))?))+\s*$`)
	amountTokenSplit = regexp.MustCompile(`\s+`)
)

// AnalyzePDF extracts the text layer from a PDF.
// It is wrapped in recover() and never panics.
func AnalyzePDF(data []byte) (result *PDFAnalysis) {
	result = &PDFAnalysis{PageCount: 1, IsScanned: true}

	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Errorf("panic during PDF analysis: %v", r)
			result.IsScanned = true
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		result.Error = fmt.Errorf("open PDF reader: %w", err)
		return result
	}

	result.PageCount = reader.NumPage()
	if result.PageCount < 1 {
		result.PageCount = 1
	}

	plainText, err := reader.GetPlainText()
	if err != nil {
		result.Error = fmt.Errorf("extract plain text: %w", err)
		return result
	}

	textBytes, err := io.ReadAll(io.LimitReader(plainText, int64(maxTextBytes)))
	if err != nil {
		result.Error = fmt.Errorf("read plain text: %w", err)
		return result
	}

	text := string(textBytes)
	result.IsScanned = isLikelyScanned(text, result.PageCount)

	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			result.TextLines = append(result.TextLines, trimmed)
		}
	}
	result.EstimatedTxCount = countTransactionLines(result.TextLines)
	return result
}

// countTransactionLines counts lines that contain both a date-like pattern
// and a monetary amount.
func countTransactionLines(lines []string) int {
	count := 0
	for _, line := range lines {
		if datePattern.MatchString(line) && amountPattern.MatchString(line) {
			count++
		}
	}
	return count
}

// isLikelyScanned returns true if the PDF appears to be a scanned image
// (very little extractable text per page).
func isLikelyScanned(text string, pages int) bool {
	if pages <= 0 {
		pages = 1
	}
	return len(text)/pages < scannedThreshold
}

// PDFSource turns the PDF text layer into rows, one per line.
type PDFSource struct{}

func (p *PDFSource) Name() string { return "pdf" }

func (p *PDFSource) Extract(ctx context.Context, data []byte) (RecoveryResult, error) {
	if err := ctx.Err(); err != nil {
		return RecoveryResult{}, err
	}
	analysis := AnalyzePDF(data)
	if analysis.Error != nil {
		return RecoveryResult{}, analysis.Error
	}
	result := RecoveryResult{Source: p.Name()}
	if analysis.IsScanned {
		result.Warnings = append(result.Warnings, "pdf has little or no text layer; scanned statements are not supported")
	}
	rows := make([][]string, 0, len(analysis.TextLines))
	for _, line := range analysis.TextLines {
		rows = append(rows, SplitTextLine(line))
	}
	result.Grid, result.Truncated = trimGrid(rows)
	return result, nil
}

// SplitTextLine splits a text line into cells on tabs or runs of two or more
// spaces. A single-space line that starts with a date and ends with amounts
// is split into date, description and one cell per amount.
func SplitTextLine(line string) []string {
	line = strings.TrimSpace(line)
	parts := cellGapPattern.Split(line, -1)
	if len(parts) > 1 {
		return parts
	}
	loc := leadingDate.FindStringSubmatchIndex(line)
	tail := trailingAmounts.FindStringIndex(line)
	if loc == nil || tail == nil || tail[0] <= loc[1] {
		return parts
	}
	cells := []string{line[loc[2]:loc[3]], strings.TrimSpace(line[loc[1]:tail[0]])}
	for _, tok := range amountTokenSplit.Split(strings.TrimSpace(line[tail[0]:]), -1) {
		if tok == "CR" || tok == "DR" {
			cells[len(cells)-1] += " " + tok
			continue
		}
		cells = append(cells, tok)
	}
	return cells
}
