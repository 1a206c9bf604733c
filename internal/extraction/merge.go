package extraction

import (
	"math"
	"strings"
)

// Merge overlays enrichment output onto the locally normalized candidates.
// enriched is aligned by position; missing entries are empty overrides.
// Audit fields and preserved columns always come from the original.
func Merge(original []CanonicalTransaction, enriched []map[string]any) []CanonicalTransaction {
	out := make([]CanonicalTransaction, len(original))
	for i, o := range original {
		var e map[string]any
		if i < len(enriched) {
			e = enriched[i]
		}
		out[i] = mergeOne(o, e)
	}
	return out
}

func mergeOne(o CanonicalTransaction, e map[string]any) CanonicalTransaction {
	t := o
	t.PreservedColumns = o.PreservedColumns.Clone()
	t.OriginalDate = o.OriginalDate
	t.OriginalAmount = o.OriginalAmount

	if s := stringField(e, "date"); s != "" {
		if d, ok := ParseStatementDate(s); ok {
			t.Date = d.Format(isoDate)
		}
	}
	if s := stringField(e, "description"); s != "" {
		t.Description = s
	}
	if f, ok := e["amount"].(float64); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
		t.Amount = roundCents(f)
	}

	if et := NormalizeTypeValue(stringField(e, "type")); et != TypeUnknown {
		t.Type = et
	}
	if t.Type == TypeUnknown || t.Type == "" {
		t.Type = typeFromSign(t.Amount)
	}
	if t.Type != TypeUnknown && t.Amount != 0 {
		t.Amount = SignedAmount(t.Amount, t.Type)
	}

	if s := stringField(e, "category"); s != "" {
		t.Category = s
	}
	if s := stringField(e, "source"); s != "" {
		t.Source = s
	}
	if sg := suggestionField(e, "categorySuggestion", "category_suggestion"); sg != nil {
		t.CategorySuggestion = sg
		if t.Category == "" {
			t.Category = sg.Value
		}
	}
	if sg := suggestionField(e, "sourceSuggestion", "source_suggestion"); sg != nil {
		t.SourceSuggestion = sg
		if t.Source == "" {
			t.Source = sg.Value
		}
	}

	if b, ok := e["selected"].(bool); ok {
		t.Selected = b
	} else {
		ApplySelectionDefaults(&t)
	}
	return t
}

// ApplySelectionDefaults marks debits as selected for import.
func ApplySelectionDefaults(t *CanonicalTransaction) {
	t.Selected = t.Type == TypeDebit
}

// FilterTransactions drops zero-amount rows without a real description and
// resolves any type still unknown from the amount's sign. Applying it twice
// gives the same result as applying it once.
func FilterTransactions(txs []CanonicalTransaction) []CanonicalTransaction {
	out := make([]CanonicalTransaction, 0, len(txs))
	for _, t := range txs {
		if t.Amount == 0 && !t.HasDescription() {
			continue
		}
		if t.Type != TypeDebit && t.Type != TypeCredit {
			t.Type = typeFromSign(t.Amount)
			if t.Type == TypeUnknown {
				t.Type = DefaultAmbiguousType
			}
			ApplySelectionDefaults(&t)
		}
		out = append(out, t)
	}
	return out
}

func typeFromSign(amount float64) TransactionType {
	switch {
	case amount < 0:
		return TypeDebit
	case amount > 0:
		return TypeCredit
	default:
		return TypeUnknown
	}
}

func stringField(e map[string]any, key string) string {
	s, _ := e[key].(string)
	return strings.TrimSpace(s)
}

// suggestionField reads {"value": ..., "confidence": ...} or a bare string.
// A bare string carries no confidence and is recorded as 0.
func suggestionField(e map[string]any, keys ...string) *Suggestion {
	for _, key := range keys {
		switch v := e[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return &Suggestion{Value: s}
			}
		case map[string]any:
			s := stringField(v, "value")
			if s == "" {
				continue
			}
			conf, _ := v["confidence"].(float64)
			return &Suggestion{Value: s, Confidence: clamp01(conf)}
		}
	}
	return nil
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
