package extraction

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// FileType identifies how statement bytes are encoded.
type FileType string

const (
	FileTypeXLSX    FileType = "xlsx"
	FileTypeXLS     FileType = "xls"
	FileTypeCSV     FileType = "csv"
	FileTypePDF     FileType = "pdf"
	FileTypeRows    FileType = "rows"
	FileTypeUnknown FileType = "unknown"
)

// MaxGridRows caps how many rows any table source reconstructs.
const MaxGridRows = 1000

// ParseFileType maps a user-supplied file type or extension to a FileType.
func ParseFileType(s string) FileType {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "xlsx", "xlsm":
		return FileTypeXLSX
	case "xls":
		return FileTypeXLS
	case "csv", "tsv", "txt":
		return FileTypeCSV
	case "pdf":
		return FileTypePDF
	case "rows", "json":
		return FileTypeRows
	default:
		return FileTypeUnknown
	}
}

var (
	magicZip = []byte("PK\x03\x04")
	magicOLE = []byte{0xD0, 0xCF, 0x11, 0xE0}
	magicPDF = []byte("%PDF")
)

// DetectFileType sniffs magic bytes, falling back to the filename extension.
func DetectFileType(filename string, data []byte) FileType {
	switch {
	case bytes.HasPrefix(data, magicZip):
		return FileTypeXLSX
	case bytes.HasPrefix(data, magicOLE):
		return FileTypeXLS
	case bytes.HasPrefix(data, magicPDF):
		return FileTypePDF
	}
	return ParseFileType(filepath.Ext(filename))
}

// RecoveryResult is the grid recovered by a TableSource.
type RecoveryResult struct {
	Grid      Grid
	Truncated bool
	Source    string
	Warnings  []string
}

// TableSource recovers a grid of cell strings from raw statement bytes.
type TableSource interface {
	Name() string
	Extract(ctx context.Context, data []byte) (RecoveryResult, error)
}

// ChainSource tries sources in order and keeps the first grid with at least
// two rows (a header and one data row). Source errors become warnings.
type ChainSource struct {
	Sources []TableSource
}

func (c *ChainSource) Name() string {
	names := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		names[i] = s.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *ChainSource) Extract(ctx context.Context, data []byte) (RecoveryResult, error) {
	var warnings []string
	var best RecoveryResult
	for _, src := range c.Sources {
		if err := ctx.Err(); err != nil {
			return RecoveryResult{Warnings: warnings}, err
		}
		res, err := src.Extract(ctx, data)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", src.Name(), err))
			continue
		}
		warnings = append(warnings, res.Warnings...)
		if res.Source == "" {
			res.Source = src.Name()
		}
		if len(res.Grid) >= 2 {
			res.Warnings = warnings
			return res, nil
		}
		if len(res.Grid) > len(best.Grid) {
			best = res
		}
	}
	best.Warnings = warnings
	return best, nil
}

// SourcesFor returns the extraction chain for a file type.
func SourcesFor(ft FileType) TableSource {
	switch ft {
	case FileTypeXLSX:
		return &ChainSource{Sources: []TableSource{&SpreadsheetSource{}, &BinaryRecoverer{}}}
	case FileTypeXLS:
		return &ChainSource{Sources: []TableSource{&BinaryRecoverer{}}}
	case FileTypeCSV:
		return &ChainSource{Sources: []TableSource{&DelimitedSource{}}}
	case FileTypePDF:
		return &ChainSource{Sources: []TableSource{&PDFSource{}}}
	default:
		return &ChainSource{Sources: []TableSource{&SpreadsheetSource{}, &DelimitedSource{}, &BinaryRecoverer{}}}
	}
}
