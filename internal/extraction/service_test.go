package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const statementCSV = "Statement of Account\n" +
	"Account: 0123456789\n" +
	"Date,Narration,Debit,Credit,Balance\n" +
	"12-Aug-2024,Opening Balance,,,10000.00\n" +
	"12-Aug-2024,POS PURCHASE SHOPRITE,1250.00,,8750.00\n" +
	"\n" +
	"13-Aug-2024,SALARY AUGUST,,50000.00,58750.00\n" +
	"14-Aug-2024,Transfer to Ada,\"2,000.00\",,56750.00\n"

func fixedNow() time.Time { return testNow }

func newLocalService() *StatementService {
	return NewStatementService(Config{Now: fixedNow})
}

func TestProcessStatement_LocalCSV(t *testing.T) {
	res, err := newLocalService().ProcessStatement(context.Background(), []byte(statementCSV), FileTypeCSV, ContextGeneral, ProviderNone)
	require.NoError(t, err)

	assert.Equal(t, "delimited", res.Source)
	assert.True(t, res.HeaderFound)
	assert.Equal(t, 2, res.HeaderRow)
	assert.Empty(t, res.ProviderUsed)
	require.Len(t, res.Transactions, 3)

	pos, salary, transfer := res.Transactions[0], res.Transactions[1], res.Transactions[2]

	assert.Equal(t, "2024-08-12", pos.Date)
	assert.Equal(t, "POS PURCHASE SHOPRITE", pos.Description)
	assert.Equal(t, -1250.0, pos.Amount)
	assert.Equal(t, TypeDebit, pos.Type)
	assert.True(t, pos.Selected)
	assert.Equal(t, "1250.00", pos.OriginalAmount)

	assert.Equal(t, "2024-08-13", salary.Date)
	assert.Equal(t, 50000.0, salary.Amount)
	assert.Equal(t, TypeCredit, salary.Type)
	assert.False(t, salary.Selected)

	assert.Equal(t, -2000.0, transfer.Amount)
	assert.Equal(t, "2,000.00", transfer.OriginalAmount)
}

func TestProcessStatement_PreservesEveryColumn(t *testing.T) {
	res, err := newLocalService().ProcessStatement(context.Background(), []byte(statementCSV), FileTypeCSV, ContextGeneral, ProviderNone)
	require.NoError(t, err)

	for _, tx := range res.Transactions {
		require.NotNil(t, tx.PreservedColumns)
		assert.Equal(t, []string{"Date", "Narration", "Debit", "Credit", "Balance"}, tx.PreservedColumns.Keys())
		assert.Equal(t, tx.OriginalDate, tx.PreservedColumns.Text("Date"))
	}
	assert.Equal(t, "8750.00", res.Transactions[0].PreservedColumns.Text("Balance"))
}

func TestProcessStatement_SignAgreesWithType(t *testing.T) {
	res, err := newLocalService().ProcessStatement(context.Background(), []byte(statementCSV), FileTypeCSV, ContextGeneral, ProviderNone)
	require.NoError(t, err)

	for _, tx := range res.Transactions {
		switch tx.Type {
		case TypeDebit:
			assert.LessOrEqual(t, tx.Amount, 0.0, tx.Description)
		case TypeCredit:
			assert.GreaterOrEqual(t, tx.Amount, 0.0, tx.Description)
		default:
			t.Fatalf("unexpected type %q for %s", tx.Type, tx.Description)
		}
	}
}

func TestProcessStatement_FallbackMatchesLocalOutput(t *testing.T) {
	ctrl := gomock.NewController(t)
	gemini := newMockProvider(ctrl, ProviderGemini)
	openai := newMockProvider(ctrl, ProviderOpenAI)
	gemini.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return("", NewProviderError(ProviderGemini, ProviderAuthError, "status 401", nil))
	openai.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return("", NewProviderError(ProviderOpenAI, ProviderAuthError, "status 403", nil))

	svc := NewStatementService(Config{
		Enricher:         NewEnricher(EnricherConfig{Providers: []CompletionProvider{gemini, openai}, Retry: testRetry}),
		EnableEnrichment: true,
		Now:              fixedNow,
	})

	enrichedRes, err := svc.ProcessStatement(context.Background(), []byte(statementCSV), FileTypeCSV, ContextExpense, ProviderNone)
	require.NoError(t, err)
	localRes, err := newLocalService().ProcessStatement(context.Background(), []byte(statementCSV), FileTypeCSV, ContextExpense, ProviderNone)
	require.NoError(t, err)

	assert.Equal(t, localRes.Transactions, enrichedRes.Transactions)
	assert.Empty(t, enrichedRes.ProviderUsed)
	assert.Len(t, enrichedRes.Attempts, 2)
	assert.Contains(t, enrichedRes.Warnings, "enrichment unavailable; returning locally normalized transactions")
}

func TestProcessStatement_AppliesEnrichment(t *testing.T) {
	ctrl := gomock.NewController(t)
	gemini := newMockProvider(ctrl, ProviderGemini)
	gemini.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(`[
		{"description": "Shoprite Lekki", "category": "Groceries", "amount": 1250},
		{"description": "August salary", "type": "credit", "sourceSuggestion": {"value": "Acme Ltd", "confidence": 0.8}},
		{"description": "Transfer to Ada", "category": "Transfers"}
	]`, nil)

	svc := NewStatementService(Config{
		Enricher:         NewEnricher(EnricherConfig{Providers: []CompletionProvider{gemini}, Retry: testRetry}),
		EnableEnrichment: true,
		Now:              fixedNow,
	})
	res, err := svc.ProcessStatement(context.Background(), []byte(statementCSV), FileTypeCSV, ContextGeneral, ProviderNone)
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, res.ProviderUsed)
	assert.Equal(t, ModeFull, res.Enrichment)
	require.Len(t, res.Transactions, 3)

	assert.Equal(t, "Shoprite Lekki", res.Transactions[0].Description)
	assert.Equal(t, -1250.0, res.Transactions[0].Amount)
	assert.Equal(t, "Groceries", res.Transactions[0].Category)
	assert.Equal(t, "1250.00", res.Transactions[0].OriginalAmount)

	assert.Equal(t, "Acme Ltd", res.Transactions[1].Source)
	assert.Equal(t, 50000.0, res.Transactions[1].Amount)
}

func TestProcessStatement_EnrichmentDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	gemini := newMockProvider(ctrl, ProviderGemini)

	svc := NewStatementService(Config{
		Enricher:         NewEnricher(EnricherConfig{Providers: []CompletionProvider{gemini}}),
		EnableEnrichment: false,
		Now:              fixedNow,
	})
	res, err := svc.ProcessStatement(context.Background(), []byte(statementCSV), FileTypeCSV, ContextGeneral, ProviderGemini)
	require.NoError(t, err)
	assert.Len(t, res.Transactions, 3)
	assert.Empty(t, res.Attempts)
}

func TestProcessStatement_Rows(t *testing.T) {
	data := []byte(`[{"Date": "2024-01-05", "Description": "Refund", "Amount": 42.5}, {"Date": "", "Description": "", "Amount": ""}]`)
	res, err := newLocalService().ProcessStatement(context.Background(), data, FileTypeRows, ContextGeneral, ProviderNone)
	require.NoError(t, err)

	require.Len(t, res.Transactions, 1)
	assert.Equal(t, 42.5, res.Transactions[0].Amount)
	assert.Equal(t, TypeCredit, res.Transactions[0].Type)
	assert.Equal(t, []string{"Date", "Description", "Amount"}, res.Transactions[0].PreservedColumns.Keys())
}

func TestProcessStatement_BadInputNeverErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		fileType FileType
	}{
		{"empty", nil, FileTypeCSV},
		{"binary noise", []byte{0x00, 0x01, 0x02, 0x03, 0xFF, 0xFE, 0x10}, FileTypeUnknown},
		{"broken xls", []byte{0xD0, 0xCF, 0x11, 0xE0, 0x01}, FileTypeXLS},
		{"rows not json", []byte("{not json"), FileTypeRows},
		{"not a pdf", []byte("%PDF-garbage"), FileTypePDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newLocalService().ProcessStatement(context.Background(), tt.data, tt.fileType, ContextGeneral, ProviderNone)
			require.NoError(t, err)
			require.NotNil(t, res.Transactions)
			assert.Empty(t, res.Transactions)
			assert.NotEmpty(t, res.Warnings)
		})
	}
}

func TestProcessStatement_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newLocalService().ProcessStatement(ctx, []byte(statementCSV), FileTypeCSV, ContextGeneral, ProviderNone)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessGrid_DebitCreditColumns(t *testing.T) {
	grid := Grid{
		{"Date", "Narration", "Debit", "Credit"},
		{"12-Aug-2024", "Grocery Store", "58.97", ""},
		{"13-Aug-2024", "Salary", "", "1500.00"},
	}
	res, err := newLocalService().ProcessGrid(context.Background(), grid, ContextGeneral, ProviderNone)
	require.NoError(t, err)

	assert.True(t, res.HeaderFound)
	require.Len(t, res.Transactions, 2)

	grocery, salary := res.Transactions[0], res.Transactions[1]
	assert.Equal(t, "2024-08-12", grocery.Date)
	assert.Equal(t, "Grocery Store", grocery.Description)
	assert.Equal(t, -58.97, grocery.Amount)
	assert.Equal(t, TypeDebit, grocery.Type)

	assert.Equal(t, "2024-08-13", salary.Date)
	assert.Equal(t, "Salary", salary.Description)
	assert.Equal(t, 1500.0, salary.Amount)
	assert.Equal(t, TypeCredit, salary.Type)

	for _, tx := range res.Transactions {
		require.NotNil(t, tx.PreservedColumns)
		assert.NotZero(t, tx.PreservedColumns.Len())
		assert.Equal(t, []string{"Date", "Narration", "Debit", "Credit"}, tx.PreservedColumns.Keys())
	}
}

func TestProcessGrid_NoHeaderUsesFirstRow(t *testing.T) {
	grid := Grid{
		{"Posted", "Narration", "Value"},
		{"2024-02-01", "Coffee", "-3.20"},
	}
	res, err := newLocalService().ProcessGrid(context.Background(), grid, ContextGeneral, ProviderNone)
	require.NoError(t, err)

	assert.False(t, res.HeaderFound)
	assert.Contains(t, res.Warnings, "no header row matched; using the first row as headers")
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "grid", res.Source)
	assert.Equal(t, -3.2, res.Transactions[0].Amount)
	assert.Equal(t, "2024-02-01", res.Transactions[0].PreservedColumns.Text("Posted"))
}

func TestProcessRows_SortsKeys(t *testing.T) {
	rows := []map[string]any{{"Description": "Card fee", "Amount": -2.0, "Date": "2024-03-01"}}
	res, err := newLocalService().ProcessRows(context.Background(), rows, ContextGeneral, ProviderNone)
	require.NoError(t, err)

	require.Len(t, res.Transactions, 1)
	tx := res.Transactions[0]
	assert.Equal(t, []string{"Amount", "Date", "Description"}, tx.PreservedColumns.Keys())
	assert.Equal(t, -2.0, tx.Amount)
	assert.Equal(t, TypeDebit, tx.Type)
	assert.Equal(t, "2024-03-01", tx.Date)
}
