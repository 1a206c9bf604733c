package extraction

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// ColumnMapping names the source column feeding each canonical field.
// Empty means the field has no column.
type ColumnMapping struct {
	Date        string
	Description []string // joined with " - " when more than one
	Credit      string
	Debit       string
	Type        string
	Amount      string
}

var (
	dateHeaderKeywords = []string{"date", "time", "statement of account", "value date", "posting date"}
	// Ranked: earlier keywords win over later ones when several columns match.
	descriptionHeaderKeywords = []string{"narration", "description", "particulars", "remarks", "narrative", "details", "reference"}
	creditHeaderKeywords      = []string{"credit", "inflow", "money in", "deposit", "paid in"}
	debitHeaderKeywords       = []string{"debit", "outflow", "money out", "withdrawal", "paid out"}
	typeHeaderKeywords        = []string{"type", "dr/cr"}
	amountHeaderKeywords      = []string{"amount", "value"}

	creditDescriptionKeywords = []string{"credit", "deposit", "inward", "received"}
	debitDescriptionKeywords  = []string{"debit", "payment", "withdrawal", "outward", "purchase"}

	idHeaders = []string{"id", "transaction id", "transaction_id", "transactionid"}
)

const (
	toFromHeader   = "to / from"
	categoryHeader = "category"
)

var transactionNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("statement-transaction"))

func foldHeader(h string) string {
	return strings.Join(strings.Fields(cases.Fold().String(h)), " ")
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func keywordRank(s string, keywords []string) int {
	for i, kw := range keywords {
		if strings.Contains(s, kw) {
			return i
		}
	}
	return -1
}

// IsAutoHeader reports whether a label was generated for an unnamed column.
func IsAutoHeader(h string) bool {
	f := foldHeader(h)
	return f == "" || strings.HasPrefix(f, "column ") || strings.HasPrefix(f, "__empty")
}

// MapColumns assigns headers to canonical fields. Each header is tested in
// priority order date, description, credit, debit, type, amount and is
// claimed by the first field it matches; the first such header wins a field.
func MapColumns(headers []string) ColumnMapping {
	var m ColumnMapping
	descRank := len(descriptionHeaderKeywords)
	var descHeader, toFrom, category, auto string

	for _, h := range headers {
		f := foldHeader(h)
		switch {
		case f == "":
			continue
		case IsAutoHeader(h):
			if auto == "" {
				auto = h
			}
		case containsAny(f, dateHeaderKeywords):
			if m.Date == "" {
				m.Date = h
			}
		case keywordRank(f, descriptionHeaderKeywords) >= 0:
			if r := keywordRank(f, descriptionHeaderKeywords); r < descRank {
				descHeader, descRank = h, r
			}
		case f == toFromHeader:
			toFrom = h
		case containsAny(f, creditHeaderKeywords):
			if m.Credit == "" {
				m.Credit = h
			}
		case containsAny(f, debitHeaderKeywords):
			if m.Debit == "" {
				m.Debit = h
			}
		case containsAny(f, typeHeaderKeywords):
			if m.Type == "" {
				m.Type = h
			}
		case containsAny(f, amountHeaderKeywords):
			if m.Amount == "" {
				m.Amount = h
			}
		case f == categoryHeader:
			category = h
		}
	}

	switch {
	case descHeader != "":
		m.Description = []string{descHeader}
	case toFrom != "" && category != "":
		m.Description = []string{toFrom, category}
	case toFrom != "":
		m.Description = []string{toFrom}
	case auto != "":
		m.Description = []string{auto}
	}
	return m
}

// NormalizeTypeValue maps an explicit type cell or enrichment value to a
// TransactionType, returning TypeUnknown when it names neither direction.
func NormalizeTypeValue(v string) TransactionType {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debit", "dr", "d", "withdrawal", "expense", "out":
		return TypeDebit
	case "credit", "cr", "c", "deposit", "income", "in":
		return TypeCredit
	default:
		return TypeUnknown
	}
}

// TypeSignals carries everything a row says about its direction.
type TypeSignals struct {
	Explicit    string
	Description string
	Credit      float64
	Debit       float64
	Amount      float64
	HasAmount   bool
}

// InferType resolves direction from, in order: the explicit type column,
// which of credit/debit is non-zero, description keywords, the sign of the
// raw amount, and finally DefaultAmbiguousType. A value sitting in exactly
// one of the debit/credit columns fixes the direction, so a "credit card
// payment" in the Debit column stays an outflow.
func InferType(s TypeSignals) TransactionType {
	if t := NormalizeTypeValue(s.Explicit); t != TypeUnknown {
		return t
	}
	switch {
	case s.Credit != 0 && s.Debit == 0:
		return TypeCredit
	case s.Debit != 0 && s.Credit == 0:
		return TypeDebit
	}
	desc := strings.ToLower(s.Description)
	if containsAny(desc, creditDescriptionKeywords) {
		return TypeCredit
	}
	if containsAny(desc, debitDescriptionKeywords) {
		return TypeDebit
	}
	if s.HasAmount && s.Amount < 0 {
		return TypeDebit
	}
	if s.HasAmount && s.Amount > 0 {
		return TypeCredit
	}
	return DefaultAmbiguousType
}

// SignedAmount applies the sign convention: debits negative, credits positive.
func SignedAmount(magnitude float64, t TransactionType) float64 {
	magnitude = math.Abs(magnitude)
	switch t {
	case TypeDebit:
		return -magnitude
	case TypeCredit:
		return magnitude
	default:
		return 0
	}
}

// Normalizer turns header-keyed records into canonical transactions.
type Normalizer struct {
	Mapping ColumnMapping
	Now     time.Time
}

// NewNormalizer maps headers once for a whole statement.
func NewNormalizer(headers []string, now time.Time) *Normalizer {
	return &Normalizer{Mapping: MapColumns(headers), Now: now}
}

// Normalize builds a candidate from one record. index is the record's
// position and feeds the generated ID.
func (n *Normalizer) Normalize(rec *ProvenanceMap, index int) CanonicalTransaction {
	return NormalizeRecord(rec, n.Mapping, n.Now, index)
}

// NormalizeRecord converts one header-keyed record. The record is copied
// unmodified into PreservedColumns.
func NormalizeRecord(rec *ProvenanceMap, m ColumnMapping, now time.Time, index int) CanonicalTransaction {
	rawDate := rec.Text(m.Date)

	var parts []string
	for _, col := range m.Description {
		if v := rec.Text(col); v != "" {
			parts = append(parts, strings.Join(strings.Fields(v), " "))
		}
	}
	description := strings.Join(parts, " - ")

	credit := columnAmount(rec, m.Credit)
	debit := columnAmount(rec, m.Debit)
	var amount float64
	hasAmount := false
	if m.Amount != "" {
		v, _ := rec.Get(m.Amount)
		amount, hasAmount = NumericValue(v)
	}

	txType := InferType(TypeSignals{
		Explicit:    rec.Text(m.Type),
		Description: description,
		Credit:      credit,
		Debit:       debit,
		Amount:      amount,
		HasAmount:   hasAmount,
	})

	var magnitude float64
	var rawAmount string
	switch {
	case hasAmount && amount != 0:
		magnitude, rawAmount = amount, rec.Text(m.Amount)
	case txType == TypeCredit && credit != 0:
		magnitude, rawAmount = credit, rec.Text(m.Credit)
	case txType == TypeDebit && debit != 0:
		magnitude, rawAmount = debit, rec.Text(m.Debit)
	case debit != 0:
		magnitude, rawAmount = debit, rec.Text(m.Debit)
	case credit != 0:
		magnitude, rawAmount = credit, rec.Text(m.Credit)
	default:
		rawAmount = firstNonEmpty(rec.Text(m.Amount), rec.Text(m.Debit), rec.Text(m.Credit))
	}

	if description == "" {
		description = UnknownDescription
	}

	return CanonicalTransaction{
		ID:               recordID(rec, index),
		Date:             NormalizeDate(rawDate, now),
		Description:      description,
		Amount:           roundCents(SignedAmount(magnitude, txType)),
		Type:             txType,
		Selected:         txType == TypeDebit,
		OriginalDate:     rawDate,
		OriginalAmount:   rawAmount,
		PreservedColumns: rec.Clone(),
	}
}

func columnAmount(rec *ProvenanceMap, col string) float64 {
	if col == "" {
		return 0
	}
	v, _ := rec.Get(col)
	return UnsignedAmount(v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// recordID reuses a source identifier column or derives a stable UUID from
// the record's position and content.
func recordID(rec *ProvenanceMap, index int) string {
	for _, k := range rec.Keys() {
		if containsExact(idHeaders, foldHeader(k)) {
			if id := rec.Text(k); id != "" {
				return id
			}
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d", index)
	for _, k := range rec.Keys() {
		fmt.Fprintf(&b, "|%s=%s", k, rec.Text(k))
	}
	return uuid.NewSHA1(transactionNamespace, []byte(b.String())).String()
}

func containsExact(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
