package extraction

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DelimitedSource reads CSV, TSV and semicolon/pipe separated exports.
type DelimitedSource struct {
	// Delimiter forces a separator; zero means sniff it.
	Delimiter rune
}

func (d *DelimitedSource) Name() string { return "delimited" }

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}

	delimiterCandidates = []rune{',', ';', '\t', '|'}
)

const sniffLines = 20

func (d *DelimitedSource) Extract(ctx context.Context, data []byte) (RecoveryResult, error) {
	if err := ctx.Err(); err != nil {
		return RecoveryResult{}, err
	}
	result := RecoveryResult{Source: d.Name()}

	text, encoding, err := decodeText(data)
	if err != nil {
		return result, fmt.Errorf("decode text: %w", err)
	}
	if encoding != "utf-8" {
		result.Warnings = append(result.Warnings, "decoded delimited input as "+encoding)
	}

	delim := d.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(text)
	}

	r := newCSVReader(text, delim)
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("stopped at malformed record: %v", err))
			break
		}
		rows = append(rows, rec)
		if len(rows) > MaxGridRows*2 {
			break
		}
	}

	result.Grid, result.Truncated = trimGrid(rows)
	return result, nil
}

func newCSVReader(text []byte, delim rune) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	// Leading tabs are empty cells in TSV exports, not padding.
	r.TrimLeadingSpace = delim != '\t'
	return r
}

// decodeText normalises input to UTF-8 and reports the source encoding.
func decodeText(data []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return data[len(bomUTF8):], "utf-8", nil
	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		return out, "utf-16", err
	case utf8.Valid(data):
		return data, "utf-8", nil
	default:
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		return out, "windows-1252", err
	}
}

// sniffDelimiter picks the candidate that splits the first lines into the
// most rows sharing one multi-column width. Ties keep candidate order.
func sniffDelimiter(text []byte) rune {
	best, bestScore := ',', 0
	for _, cand := range delimiterCandidates {
		r := newCSVReader(text, cand)
		widths := make(map[int]int)
		for i := 0; i < sniffLines; i++ {
			rec, err := r.Read()
			if err != nil {
				break
			}
			if len(rec) > 1 {
				widths[len(rec)]++
			}
		}
		score := 0
		for _, n := range widths {
			if n > score {
				score = n
			}
		}
		if score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best
}
