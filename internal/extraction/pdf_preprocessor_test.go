package extraction

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "wide gaps",
			line: "12/08/2024   POS PURCHASE SHOPRITE    1,250.00   48,750.00",
			want: []string{"12/08/2024", "POS PURCHASE SHOPRITE", "1,250.00", "48,750.00"},
		},
		{
			name: "tabs",
			line: "Date\tDescription\tAmount",
			want: []string{"Date", "Description", "Amount"},
		},
		{
			name: "single spaced with trailing amounts",
			line: "  12/08/2024 POS PURCHASE SHOPRITE 1,250.00 48,750.00",
			want: []string{"12/08/2024", "POS PURCHASE SHOPRITE", "1,250.00", "48,750.00"},
		},
		{
			name: "credit markers stay with their amount",
			line: "13 Aug 2024 SALARY AUGUST 50,000.00 CR 98,750.00 CR",
			want: []string{"13 Aug 2024", "SALARY AUGUST", "50,000.00 CR", "98,750.00 CR"},
		},
		{
			name: "prose is one cell",
			line: "Thank you for banking with us",
			want: []string{"Thank you for banking with us"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitTextLine(tt.line))
		})
	}
}

func TestCountTransactionLines(t *testing.T) {
	lines := []string{
		"Account Statement",
		"12/08/2024 POS PURCHASE 1,250.00",
		"Jan 15 Coffee 4.50",
		"Opening balance 1,000.00",
	}
	assert.Equal(t, 2, countTransactionLines(lines))
}

func TestIsLikelyScanned(t *testing.T) {
	assert.True(t, isLikelyScanned("", 1))
	assert.True(t, isLikelyScanned(strings.Repeat("x", 80), 2))
	assert.False(t, isLikelyScanned(strings.Repeat("x", 200), 2))
	assert.False(t, isLikelyScanned(strings.Repeat("x", 60), 0))
}

func TestAnalyzePDF_InvalidInputDoesNotPanic(t *testing.T) {
	inputs := map[string][]byte{
		"garbage":   []byte("this is not a pdf"),
		"truncated": []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog"),
		"empty":     {},
	}
	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			var result *PDFAnalysis
			require.NotPanics(t, func() { result = AnalyzePDF(data) })
			require.NotNil(t, result)
			assert.Error(t, result.Error)
			assert.True(t, result.IsScanned)
			assert.Equal(t, 1, result.PageCount)
		})
	}
}

func TestPDFSource_InvalidInput(t *testing.T) {
	src := &PDFSource{}
	_, err := src.Extract(context.Background(), []byte("not a pdf"))
	assert.Error(t, err)

	// Through the chain the failure becomes a warning.
	res, err := SourcesFor(FileTypePDF).Extract(context.Background(), []byte("not a pdf"))
	require.NoError(t, err)
	assert.Empty(t, res.Grid)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "pdf:")
}
