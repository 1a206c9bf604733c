// Package extraction turns uploaded bank statements into canonical transactions.
package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	TypeDebit   TransactionType = "debit"
	TypeCredit  TransactionType = "credit"
	TypeUnknown TransactionType = "unknown"
)

// DefaultAmbiguousType is used when nothing in a row indicates direction.
// This is a bookkeeping policy: outflows booked as income are the costlier mistake.
const DefaultAmbiguousType = TypeDebit

// UnknownDescription is the placeholder for rows with no description signal.
const UnknownDescription = "Unknown Transaction"

// Grid is a recovered table: rows of cell strings.
type Grid [][]string

// Suggestion is an enrichment-provided classification.
type Suggestion struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// CanonicalTransaction is the normalized record handed back to callers.
type CanonicalTransaction struct {
	ID                 string          `json:"id"`
	Date               string          `json:"date"`
	Description        string          `json:"description"`
	Amount             float64         `json:"amount"`
	Type               TransactionType `json:"type"`
	Category           string          `json:"category,omitempty"`
	Source             string          `json:"source,omitempty"`
	Selected           bool            `json:"selected"`
	OriginalDate       string          `json:"originalDate"`
	OriginalAmount     string          `json:"originalAmount"`
	PreservedColumns   *ProvenanceMap  `json:"preservedColumns"`
	SourceSuggestion   *Suggestion     `json:"sourceSuggestion,omitempty"`
	CategorySuggestion *Suggestion     `json:"categorySuggestion,omitempty"`
}

// HasDescription reports whether the description carries a real value.
func (t *CanonicalTransaction) HasDescription() bool {
	d := strings.TrimSpace(t.Description)
	return d != "" && d != UnknownDescription
}

// ProvenanceMap is an insertion-ordered map of original column values.
// Values are string, float64, bool or nil.
type ProvenanceMap struct {
	keys   []string
	values map[string]any
}

// NewProvenanceMap creates an empty map.
func NewProvenanceMap() *ProvenanceMap {
	return &ProvenanceMap{values: make(map[string]any)}
}

// ProvenanceFromMap builds a map from an unordered Go map, sorting keys for determinism.
func ProvenanceFromMap(m map[string]any) *ProvenanceMap {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	p := NewProvenanceMap()
	for _, k := range keys {
		p.Set(k, m[k])
	}
	return p
}

// Set stores a value, keeping the original position of existing keys.
func (p *ProvenanceMap) Set(key string, v any) {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = normalizeValue(v)
}

// Get returns the value stored under key.
func (p *ProvenanceMap) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[key]
	return v, ok
}

// Text returns the value under key rendered as a trimmed string.
func (p *ProvenanceMap) Text(key string) string {
	v, ok := p.Get(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(valueText(v))
}

// Keys returns the keys in insertion order.
func (p *ProvenanceMap) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

// Len returns the number of entries.
func (p *ProvenanceMap) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Clone returns a deep copy.
func (p *ProvenanceMap) Clone() *ProvenanceMap {
	c := NewProvenanceMap()
	if p == nil {
		return c
	}
	for _, k := range p.keys {
		c.Set(k, p.values[k])
	}
	return c
}

// Map returns the entries as a plain Go map.
func (p *ProvenanceMap) Map() map[string]any {
	out := make(map[string]any, p.Len())
	if p == nil {
		return out
	}
	for _, k := range p.keys {
		out[k] = p.values[k]
	}
	return out
}

// Equal reports whether both maps hold the same keys, order and values.
func (p *ProvenanceMap) Equal(o *ProvenanceMap) bool {
	if p.Len() != o.Len() {
		return false
	}
	for i, k := range p.Keys() {
		if o.keys[i] != k || p.values[k] != o.values[k] {
			return false
		}
	}
	return true
}

// MarshalJSON writes the entries as a JSON object in insertion order.
func (p *ProvenanceMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal column %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving key order.
func (p *ProvenanceMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("preserved columns: expected object, got %v", tok)
	}
	*p = ProvenanceMap{values: make(map[string]any)}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("preserved columns: expected key, got %v", kt)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("preserved columns %q: %w", key, err)
		}
		p.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool, float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case nestedJSON:
		return x
	default:
		if b, err := json.Marshal(x); err == nil {
			return nestedJSON(b)
		}
		return fmt.Sprint(x)
	}
}

// nestedJSON holds an object or array cell as its compact JSON encoding. It
// stays comparable and marshals back verbatim.
type nestedJSON string

func (n nestedJSON) MarshalJSON() ([]byte, error) { return []byte(n), nil }

func valueText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nestedJSON:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
