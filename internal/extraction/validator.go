package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	errNoJSON        = errors.New("no JSON value found in response")
	errUnrecoverable = errors.New("response JSON could not be repaired")
)

// FieldMapping is a provider's description of which source column feeds
// each canonical field. It is returned when only a sample was sent.
type FieldMapping struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Type        string `json:"type"`
}

// IsEmpty reports whether the mapping names no usable column.
func (f FieldMapping) IsEmpty() bool {
	return f.Date == "" && f.Description == "" && f.Amount == "" && f.Debit == "" && f.Credit == ""
}

// stripCodeFences removes ```json ... ``` wrappers models add despite instructions.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// RepairJSON isolates the outermost JSON array or object in a model
// response. Mismatched closers are balanced, a truncated tail is cut back to
// the last complete element and trailing commas are dropped.
func RepairJSON(raw string) (string, error) {
	s := stripCodeFences(raw)
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return "", errNoJSON
	}

	var out strings.Builder
	var stack, safeStack []byte
	lastSafe := -1
	inString, escaped := false, false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
			out.WriteByte(c)
		case '[', '{':
			stack = append(stack, c)
			out.WriteByte(c)
		case ']', '}':
			idx := lastIndexByte(stack, openerFor(c))
			if idx < 0 {
				continue // stray closer
			}
			for len(stack)-1 > idx {
				out.WriteByte(closerFor(stack[len(stack)-1]))
				stack = stack[:len(stack)-1]
			}
			stack = stack[:idx]
			out.WriteByte(c)
			if len(stack) == 0 {
				return finalizeJSON(out.String())
			}
			lastSafe = out.Len()
			safeStack = append(safeStack[:0], stack...)
		default:
			out.WriteByte(c)
		}
	}

	if lastSafe < 0 {
		return "", errUnrecoverable
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(out.String()[:lastSafe], ", \t\r\n"))
	for i := len(safeStack) - 1; i >= 0; i-- {
		b.WriteByte(closerFor(safeStack[i]))
	}
	return finalizeJSON(b.String())
}

func finalizeJSON(s string) (string, error) {
	s = dropTrailingCommas(s)
	if !json.Valid([]byte(s)) {
		return "", errUnrecoverable
	}
	return s, nil
}

// dropTrailingCommas removes commas directly before a closing bracket,
// ignoring string contents.
func dropTrailingCommas(s string) string {
	var b strings.Builder
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == ']' || s[j] == '}') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func openerFor(c byte) byte {
	if c == '}' {
		return '{'
	}
	return '['
}

func closerFor(c byte) byte {
	if c == '{' {
		return '}'
	}
	return ']'
}

func lastIndexByte(b []byte, c byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == c {
			return i
		}
	}
	return -1
}

// ParseTransactionsResponse validates a full-mode response: an array of
// transaction objects, optionally wrapped as {"transactions": [...]}.
// Non-object elements become empty overrides so positions stay aligned.
func ParseTransactionsResponse(raw string) ([]map[string]any, error) {
	clean, err := RepairJSON(raw)
	if err != nil {
		return nil, err
	}
	var parsed any
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if obj, ok := parsed.(map[string]any); ok {
		parsed = obj["transactions"]
	}
	items, ok := parsed.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array of transactions, got %T", parsed)
	}
	if len(items) == 0 {
		return nil, errors.New("response contained no transactions")
	}
	out := make([]map[string]any, len(items))
	for i, item := range items {
		if m, ok := item.(map[string]any); ok {
			out[i] = m
		} else {
			out[i] = map[string]any{}
		}
	}
	return out, nil
}

// ParseMappingResponse validates a sample-mode response describing which
// column maps to each canonical field.
func ParseMappingResponse(raw string) (*FieldMapping, error) {
	clean, err := RepairJSON(raw)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(clean), &obj); err != nil {
		return nil, fmt.Errorf("expected a JSON mapping object: %w", err)
	}
	if inner, ok := obj["mapping"].(map[string]any); ok {
		obj = inner
	}
	str := func(key string) string {
		s, _ := obj[key].(string)
		return strings.TrimSpace(s)
	}
	m := &FieldMapping{
		Date:        str("date"),
		Description: str("description"),
		Amount:      str("amount"),
		Debit:       str("debit"),
		Credit:      str("credit"),
		Type:        str("type"),
	}
	if m.IsEmpty() {
		return nil, errors.New("mapping response named no columns")
	}
	return m, nil
}
