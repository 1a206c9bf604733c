// Package eval scores statement extraction strategies (local normalization,
// each enrichment provider) against ground-truth fixtures.
package eval

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction"
)

// GroundTruth is the expected output for a fixture.
type GroundTruth struct {
	Name         string        `json:"name"`
	FileType     string        `json:"file_type"`
	Transactions []Transaction `json:"transactions"`
}

// Transaction is a single expected transaction. Amount is signed.
type Transaction struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Category    string  `json:"category,omitempty"`
}

// EvalResult holds metrics from running one strategy on one fixture.
type EvalResult struct {
	Strategy         string
	Fixture          string
	TransactionCount CountMetrics
	AmountAccuracy   float64
	DateAccuracy     float64
	TypeAccuracy     float64
	DescriptionSim   float64
	OverallScore     float64
	Duration         time.Duration
	ProviderCalls    int
	ProviderUsed     string
	Error            string // non-empty if the strategy failed
}

// CountMetrics measures transaction detection performance.
type CountMetrics struct {
	Expected  int
	Extracted int
	Matched   int
	Precision float64
	Recall    float64
	F1        float64
}

type txPair struct {
	extracted extraction.CanonicalTransaction
	truth     Transaction
}

// StrategyFunc runs one extraction strategy over a fixture.
type StrategyFunc func(ctx context.Context, f *Fixture) (*extraction.StatementResult, error)

// ServiceStrategy adapts a StatementService into a StrategyFunc. preferred
// selects the first provider tried; ProviderNone keeps the default order.
func ServiceStrategy(svc *extraction.StatementService, pctx extraction.ProcessingContext, preferred extraction.ProviderID) StrategyFunc {
	return func(ctx context.Context, f *Fixture) (*extraction.StatementResult, error) {
		return svc.ProcessStatement(ctx, f.Data, f.FileType, pctx, preferred)
	}
}

// ComputeMetrics compares extracted transactions against ground truth.
func ComputeMetrics(
	strategy string,
	fixture string,
	extracted []extraction.CanonicalTransaction,
	truth *GroundTruth,
	duration time.Duration,
	providerCalls int,
) *EvalResult {
	result := &EvalResult{
		Strategy:      strategy,
		Fixture:       fixture,
		Duration:      duration,
		ProviderCalls: providerCalls,
	}

	matched := matchTransactions(extracted, truth.Transactions)

	result.TransactionCount = CountMetrics{
		Expected:  len(truth.Transactions),
		Extracted: len(extracted),
		Matched:   len(matched),
	}
	if len(extracted) > 0 {
		result.TransactionCount.Precision = float64(len(matched)) / float64(len(extracted))
	}
	if len(truth.Transactions) > 0 {
		result.TransactionCount.Recall = float64(len(matched)) / float64(len(truth.Transactions))
	}
	p := result.TransactionCount.Precision
	r := result.TransactionCount.Recall
	if p+r > 0 {
		result.TransactionCount.F1 = 2 * p * r / (p + r)
	}

	if len(matched) > 0 {
		var amountOK, dateOK, typeOK int
		var descSimSum float64

		for _, pair := range matched {
			if amountMatch(pair.extracted.Amount, pair.truth.Amount) {
				amountOK++
			}
			if dateMatch(pair.extracted.Date, pair.truth.Date) {
				dateOK++
			}
			if typeMatch(pair.extracted.Type, pair.truth.Type) {
				typeOK++
			}
			descSimSum += descriptionSimilarity(pair.extracted.Description, pair.truth.Description)
		}

		n := float64(len(matched))
		result.AmountAccuracy = float64(amountOK) / n
		result.DateAccuracy = float64(dateOK) / n
		result.TypeAccuracy = float64(typeOK) / n
		result.DescriptionSim = descSimSum / n
	}

	result.OverallScore = 0.30*result.TransactionCount.F1 +
		0.30*result.AmountAccuracy +
		0.15*result.DateAccuracy +
		0.15*result.TypeAccuracy +
		0.10*result.DescriptionSim

	return result
}

// matchTransactions pairs each extracted transaction with the best unused
// ground-truth transaction whose amount is within tolerance. Date and
// description break ties.
func matchTransactions(extracted []extraction.CanonicalTransaction, truth []Transaction) []txPair {
	truthUsed := make([]bool, len(truth))
	var matched []txPair

	for _, ext := range extracted {
		bestIdx := -1
		bestScore := -1.0

		for j, tr := range truth {
			if truthUsed[j] || !amountMatch(ext.Amount, tr.Amount) {
				continue
			}
			score := 1.0
			if dateMatch(ext.Date, tr.Date) {
				score += 1.0
			}
			score += descriptionSimilarity(ext.Description, tr.Description) * 0.5

			if score > bestScore {
				bestScore = score
				bestIdx = j
			}
		}

		if bestIdx >= 0 {
			truthUsed[bestIdx] = true
			matched = append(matched, txPair{extracted: ext, truth: truth[bestIdx]})
		}
	}
	return matched
}

// amountMatch compares signed amounts: within 0.10 or 1%, and never across
// a sign flip.
func amountMatch(a, b float64) bool {
	if (a < 0) != (b < 0) && a != 0 && b != 0 {
		return false
	}
	diff := math.Abs(a - b)
	if diff <= 0.10 {
		return true
	}
	return b != 0 && diff/math.Abs(b) < 0.01
}

func dateMatch(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

func typeMatch(extracted extraction.TransactionType, truth string) bool {
	return strings.EqualFold(string(extracted), strings.TrimSpace(truth))
}

// descriptionSimilarity returns a 0-1 score from normalized Levenshtein distance.
func descriptionSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1.0
	}

	lenA := utf8.RuneCountInString(a)
	lenB := utf8.RuneCountInString(b)
	return 1.0 - float64(levenshtein(a, b))/float64(max(lenA, lenB))
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr := make([]int, len(rb)+1)
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev = curr
	}
	return prev[len(rb)]
}

// RunEval executes every strategy against every fixture. Strategies run in
// name order so output is stable.
func RunEval(ctx context.Context, strategies map[string]StrategyFunc, fixtures []*Fixture) []*EvalResult {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []*EvalResult
	for _, fixture := range fixtures {
		for _, name := range names {
			start := time.Now()
			res, err := strategies[name](ctx, fixture)
			elapsed := time.Since(start)

			if err != nil {
				results = append(results, &EvalResult{
					Strategy: name,
					Fixture:  fixture.Name,
					Duration: elapsed,
					Error:    err.Error(),
				})
				continue
			}

			r := ComputeMetrics(name, fixture.Name, res.Transactions, fixture.GroundTruth, elapsed, len(res.Attempts))
			r.ProviderUsed = string(res.ProviderUsed)
			results = append(results, r)
		}
	}
	return results
}

// PrintSummary writes a comparison table followed by per-strategy averages.
func PrintSummary(w io.Writer, results []*EvalResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "Strategy\tFixture\tF1\tAmt%\tDate%\tType%\tDesc~\tScore\tTime\tCalls\tProvider\tMatch\tError")
	fmt.Fprintln(tw, "--------\t-------\t--\t----\t-----\t-----\t-----\t-----\t----\t-----\t--------\t-----\t-----")

	for _, r := range results {
		provider := r.ProviderUsed
		if provider == "" {
			provider = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.0f%%\t%.0f%%\t%.0f%%\t%.2f\t%.2f\t%s\t%d\t%s\t%d/%d\t%s\n",
			r.Strategy,
			r.Fixture,
			r.TransactionCount.F1,
			r.AmountAccuracy*100,
			r.DateAccuracy*100,
			r.TypeAccuracy*100,
			r.DescriptionSim,
			r.OverallScore,
			r.Duration.Round(time.Millisecond),
			r.ProviderCalls,
			provider,
			r.TransactionCount.Matched,
			r.TransactionCount.Expected,
			truncate(r.Error, 30),
		)
	}
	tw.Flush()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Strategy Averages ===")

	scores := make(map[string][]float64)
	f1s := make(map[string][]float64)
	totals := make(map[string]int)
	for _, r := range results {
		totals[r.Strategy]++
		if r.Error == "" {
			scores[r.Strategy] = append(scores[r.Strategy], r.OverallScore)
			f1s[r.Strategy] = append(f1s[r.Strategy], r.TransactionCount.F1)
		}
	}
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	tw2 := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw2, "Strategy\tAvg Score\tAvg F1\tFixtures")
	fmt.Fprintln(tw2, "--------\t---------\t------\t--------")
	for _, name := range names {
		fmt.Fprintf(tw2, "%s\t%.3f\t%.3f\t%d/%d\n",
			name, avg(scores[name]), avg(f1s[name]), len(scores[name]), totals[name])
	}
	tw2.Flush()
}

func avg(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
