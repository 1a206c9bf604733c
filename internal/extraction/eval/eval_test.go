package eval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction"
)

func TestAmountMatch(t *testing.T) {
	tests := []struct {
		a, b float64
		want bool
	}{
		{10.00, 10.00, true},
		{10.00, 10.05, true},
		{10.00, 10.11, false},   // over 0.10 and over 1%
		{100.00, 100.50, true},  // within 1%
		{100.00, 102.00, false}, // over 1%
		{-1250.00, -1250.00, true},
		{-1250.00, 1250.00, false}, // sign flip
		{0.0, 0.05, true},
		{0.0, -0.05, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f_vs_%.2f", tt.a, tt.b), func(t *testing.T) {
			if got := amountMatch(tt.a, tt.b); got != tt.want {
				t.Errorf("amountMatch(%.2f, %.2f) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDateMatch(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"2025-01-15", "2025-01-15", true},
		{"2025-01-15", "2025-01-16", false},
		{"", "", true},
		{"  2025-01-15  ", "2025-01-15", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q_vs_%q", tt.a, tt.b), func(t *testing.T) {
			if got := dateMatch(tt.a, tt.b); got != tt.want {
				t.Errorf("dateMatch(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTypeMatch(t *testing.T) {
	if !typeMatch(extraction.TypeDebit, " Debit ") {
		t.Error("expected debit to match Debit")
	}
	if typeMatch(extraction.TypeCredit, "debit") {
		t.Error("credit must not match debit")
	}
}

func TestDescriptionSimilarity(t *testing.T) {
	tests := []struct {
		a, b    string
		wantMin float64
		wantMax float64
	}{
		{"", "", 1.0, 1.0},
		{"POS PURCHASE SHOPRITE", "pos purchase shoprite", 1.0, 1.0},
		{"NIP TRANSFER", "NIP TRANSFER TO OKAFOR", 0.5, 0.9},
		{"SMS ALERT", "COMPLETELY DIFFERENT", 0.0, 0.3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q_vs_%q", tt.a, tt.b), func(t *testing.T) {
			got := descriptionSimilarity(tt.a, tt.b)
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("descriptionSimilarity(%q, %q) = %.3f, want [%.1f, %.1f]",
					tt.a, tt.b, got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestLevenshtein(t *testing.T) {
	if d := levenshtein("kitten", "sitting"); d != 3 {
		t.Errorf("levenshtein(kitten, sitting) = %d, want 3", d)
	}
	if d := levenshtein("", "abc"); d != 3 {
		t.Errorf("levenshtein(\"\", abc) = %d, want 3", d)
	}
	if d := levenshtein("naïve", "naive"); d != 1 {
		t.Errorf("levenshtein(naïve, naive) = %d, want 1", d)
	}
}

func TestMatchTransactions(t *testing.T) {
	extracted := []extraction.CanonicalTransaction{
		{Date: "2025-01-01", Description: "SHOPRITE", Amount: -45.67},
		{Date: "2025-01-02", Description: "SALARY", Amount: 1800},
		{Date: "2025-01-03", Description: "EXTRA TX", Amount: -999.99},
		{Date: "2025-01-04", Description: "REVERSAL", Amount: 22.99}, // sign differs from truth
	}
	truth := []Transaction{
		{Date: "2025-01-01", Description: "SHOPRITE LEKKI", Amount: -45.67},
		{Date: "2025-01-02", Description: "SALARY JAN", Amount: 1800},
		{Date: "2025-01-04", Description: "NETFLIX", Amount: -22.99},
	}

	matched := matchTransactions(extracted, truth)
	if len(matched) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matched))
	}
	if matched[0].truth.Description != "SHOPRITE LEKKI" || matched[1].truth.Description != "SALARY JAN" {
		t.Errorf("unexpected pairing: %+v", matched)
	}
}

func TestComputeMetrics(t *testing.T) {
	extracted := []extraction.CanonicalTransaction{
		{Date: "2025-01-01", Description: "SHOPRITE LEKKI", Amount: -45.67, Type: extraction.TypeDebit},
		{Date: "2025-01-02", Description: "SALARY", Amount: 1800, Type: extraction.TypeCredit},
	}
	truth := &GroundTruth{
		Transactions: []Transaction{
			{Date: "2025-01-01", Description: "SHOPRITE LEKKI", Amount: -45.67, Type: "debit"},
			{Date: "2025-01-02", Description: "SALARY JANUARY", Amount: 1800, Type: "credit"},
		},
	}

	result := ComputeMetrics("test", "test_fixture", extracted, truth, 100*time.Millisecond, 1)

	if result.TransactionCount.F1 != 1.0 {
		t.Errorf("expected F1 1.0, got %.2f", result.TransactionCount.F1)
	}
	if result.AmountAccuracy != 1.0 || result.DateAccuracy != 1.0 || result.TypeAccuracy != 1.0 {
		t.Errorf("expected perfect field accuracy, got amt=%.2f date=%.2f type=%.2f",
			result.AmountAccuracy, result.DateAccuracy, result.TypeAccuracy)
	}
	if result.DescriptionSim >= 1.0 {
		t.Errorf("expected imperfect description similarity, got %.3f", result.DescriptionSim)
	}
	if result.OverallScore < 0.9 {
		t.Errorf("expected overall score >= 0.9, got %.3f", result.OverallScore)
	}
	if result.ProviderCalls != 1 {
		t.Errorf("expected 1 provider call, got %d", result.ProviderCalls)
	}
}

func TestComputeMetrics_Empty(t *testing.T) {
	result := ComputeMetrics("test", "empty", nil, &GroundTruth{}, 0, 0)
	if result.TransactionCount.F1 != 0 || result.OverallScore != 0 {
		t.Errorf("expected zero scores, got F1=%.2f score=%.3f", result.TransactionCount.F1, result.OverallScore)
	}
}

func TestLoadFixtures(t *testing.T) {
	fixtures, err := LoadFixtures()
	if err != nil {
		t.Fatalf("LoadFixtures() error: %v", err)
	}

	expectedNames := []string{"messy_statement", "signed_amounts", "simple_statement"}
	expectedTxCounts := []int{4, 4, 3}
	if len(fixtures) != len(expectedNames) {
		t.Fatalf("expected %d fixtures, got %d", len(expectedNames), len(fixtures))
	}

	for i, f := range fixtures {
		if f.Name != expectedNames[i] {
			t.Errorf("fixture[%d].Name = %q, want %q", i, f.Name, expectedNames[i])
		}
		if len(f.GroundTruth.Transactions) != expectedTxCounts[i] {
			t.Errorf("fixture %q: %d ground truth transactions, want %d",
				f.Name, len(f.GroundTruth.Transactions), expectedTxCounts[i])
		}
		if f.FileType != extraction.FileTypeCSV {
			t.Errorf("fixture %q: file type %q", f.Name, f.FileType)
		}
		if len(f.Data) == 0 {
			t.Errorf("fixture %q: empty data", f.Name)
		}
	}
}

func fixedNow() time.Time { return time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC) }

func TestEval_LocalStrategy(t *testing.T) {
	fixtures, err := LoadFixtures()
	if err != nil {
		t.Fatalf("LoadFixtures() error: %v", err)
	}

	svc := extraction.NewStatementService(extraction.Config{Now: fixedNow})
	strategies := map[string]StrategyFunc{
		"local": ServiceStrategy(svc, extraction.ContextGeneral, extraction.ProviderNone),
	}

	results := RunEval(context.Background(), strategies, fixtures)
	if len(results) != len(fixtures) {
		t.Fatalf("expected %d results, got %d", len(fixtures), len(results))
	}

	var buf bytes.Buffer
	PrintSummary(&buf, results)
	t.Log("\n" + buf.String())

	for _, r := range results {
		if r.Error != "" {
			t.Errorf("[%s/%s] unexpected error: %s", r.Strategy, r.Fixture, r.Error)
			continue
		}
		if r.Fixture != "simple_statement" {
			continue
		}
		if r.TransactionCount.F1 != 1.0 {
			t.Errorf("[simple_statement] expected F1 1.0, got %.2f (matched %d/%d, extracted %d)",
				r.TransactionCount.F1, r.TransactionCount.Matched, r.TransactionCount.Expected, r.TransactionCount.Extracted)
		}
		if r.AmountAccuracy != 1.0 || r.DateAccuracy != 1.0 || r.TypeAccuracy != 1.0 {
			t.Errorf("[simple_statement] expected perfect fields, got amt=%.2f date=%.2f type=%.2f",
				r.AmountAccuracy, r.DateAccuracy, r.TypeAccuracy)
		}
		if r.DescriptionSim != 1.0 {
			t.Errorf("[simple_statement] expected exact descriptions, got %.3f", r.DescriptionSim)
		}
	}
}

func TestEval_EnrichedStrategyFallsBack(t *testing.T) {
	fixtures, err := LoadFixtures()
	if err != nil {
		t.Fatalf("LoadFixtures() error: %v", err)
	}
	var simple []*Fixture
	for _, f := range fixtures {
		if f.Name == "simple_statement" {
			simple = append(simple, f)
		}
	}

	ctrl := gomock.NewController(t)
	p := extraction.NewMockCompletionProvider(ctrl)
	p.EXPECT().ID().Return(extraction.ProviderGemini).AnyTimes()
	p.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return("", extraction.NewProviderError(extraction.ProviderGemini, extraction.ProviderAuthError, "status 401", nil))

	svc := extraction.NewStatementService(extraction.Config{
		Enricher:         extraction.NewEnricher(extraction.EnricherConfig{Providers: []extraction.CompletionProvider{p}, Retry: extraction.NoRetry}),
		EnableEnrichment: true,
		Now:              fixedNow,
	})
	results := RunEval(context.Background(), map[string]StrategyFunc{
		"gemini": ServiceStrategy(svc, extraction.ContextGeneral, extraction.ProviderGemini),
	}, simple)

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.ProviderCalls != 1 {
		t.Errorf("expected 1 provider attempt, got %d", r.ProviderCalls)
	}
	if r.ProviderUsed != "" {
		t.Errorf("expected no provider used, got %q", r.ProviderUsed)
	}
	if r.TransactionCount.F1 != 1.0 {
		t.Errorf("expected local fallback to score F1 1.0, got %.2f", r.TransactionCount.F1)
	}
}

func TestRunEval_StrategyError(t *testing.T) {
	fixtures := []*Fixture{{Name: "f", GroundTruth: &GroundTruth{}}}
	failing := func(context.Context, *Fixture) (*extraction.StatementResult, error) {
		return nil, errors.New("context canceled")
	}
	results := RunEval(context.Background(), map[string]StrategyFunc{"b": failing, "a": failing}, fixtures)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Strategy != "a" || results[1].Strategy != "b" {
		t.Errorf("expected strategies in name order, got %s, %s", results[0].Strategy, results[1].Strategy)
	}
	if results[0].Error != "context canceled" {
		t.Errorf("expected error to be recorded, got %q", results[0].Error)
	}
}

func TestPrintSummary(t *testing.T) {
	results := []*EvalResult{
		{
			Strategy: "local",
			Fixture:  "test",
			TransactionCount: CountMetrics{
				Expected: 10, Extracted: 8, Matched: 7,
				Precision: 0.875, Recall: 0.7, F1: 0.778,
			},
			AmountAccuracy: 0.95,
			DateAccuracy:   0.90,
			TypeAccuracy:   1.0,
			DescriptionSim: 0.75,
			OverallScore:   0.85,
			Duration:       50 * time.Millisecond,
		},
		{
			Strategy: "openai",
			Fixture:  "test",
			TransactionCount: CountMetrics{
				Expected: 10, Extracted: 10, Matched: 10,
				Precision: 1.0, Recall: 1.0, F1: 1.0,
			},
			AmountAccuracy: 1.0,
			DateAccuracy:   1.0,
			TypeAccuracy:   1.0,
			DescriptionSim: 0.85,
			OverallScore:   0.96,
			Duration:       2 * time.Second,
			ProviderCalls:  1,
			ProviderUsed:   "openai",
		},
		{
			Strategy: "openai",
			Fixture:  "broken",
			Error:    "enrichment failed for every configured provider",
		},
	}

	var buf bytes.Buffer
	PrintSummary(&buf, results)
	out := buf.String()

	for _, want := range []string{"local", "openai", "7/10", "10/10", "Strategy Averages", "enrichment failed for every...", "1/2"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
