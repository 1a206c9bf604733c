package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NavisaGlobal2/digitbooks-sub002/internal/logger"
)

// Config holds configuration for the statement service.
type Config struct {
	// Enricher is optional; nil means local normalization only.
	Enricher         *Enricher
	EnableEnrichment bool
	// Now supplies the processing date used for unparseable dates.
	Now func() time.Time
}

// StatementService turns statement files into canonical transactions.
type StatementService struct {
	enricher *Enricher
	now      func() time.Time
}

// NewStatementService creates a new statement service.
func NewStatementService(cfg Config) *StatementService {
	s := &StatementService{now: cfg.Now}
	if cfg.EnableEnrichment {
		s.enricher = cfg.Enricher
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// StatementResult is what callers receive for one statement.
type StatementResult struct {
	Transactions []CanonicalTransaction `json:"transactions"`
	Warnings     []string               `json:"warnings,omitempty"`
	ProviderUsed ProviderID             `json:"providerUsed,omitempty"`
	Enrichment   EnrichmentMode         `json:"enrichmentMode,omitempty"`
	Attempts     []Attempt              `json:"providerAttempts,omitempty"`
	Truncated    bool                   `json:"truncated"`
	HeaderRow    int                    `json:"headerRow"`
	HeaderFound  bool                   `json:"headerFound"`
	Source       string                 `json:"source,omitempty"`
}

// ProcessStatement runs the full pipeline over raw file bytes. Malformed or
// empty input yields an empty or partial result, never an error; the only
// error is a context that is already done.
func (s *StatementService) ProcessStatement(
	ctx context.Context,
	data []byte,
	fileType FileType,
	pctx ProcessingContext,
	preferred ProviderID,
) (*StatementResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &StatementResult{Transactions: []CanonicalTransaction{}}
	if len(data) == 0 {
		result.Warnings = append(result.Warnings, "empty file: no transactions found")
		return result, nil
	}

	if fileType == FileTypeRows {
		var records []*ProvenanceMap
		if err := json.Unmarshal(data, &records); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("rows input is not a JSON array of objects: %v", err))
			return result, nil
		}
		result.Source = string(FileTypeRows)
		return s.process(ctx, result, records, pctx, preferred), nil
	}

	rec, err := SourcesFor(fileType).Extract(ctx, data)
	if err != nil {
		return nil, err
	}
	result.Source = rec.Source
	result.Truncated = rec.Truncated
	result.Warnings = append(result.Warnings, rec.Warnings...)
	return s.processGrid(ctx, result, rec.Grid, pctx, preferred), nil
}

// ProcessGrid runs the pipeline from an already recovered grid.
func (s *StatementService) ProcessGrid(ctx context.Context, grid Grid, pctx ProcessingContext, preferred ProviderID) (*StatementResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &StatementResult{Transactions: []CanonicalTransaction{}, Source: "grid"}
	return s.processGrid(ctx, result, grid, pctx, preferred), nil
}

// ProcessRows handles row sets that were parsed upstream. Keys are sorted to
// give preserved columns a stable order; use ProcessRecords to keep an order.
func (s *StatementService) ProcessRows(ctx context.Context, rows []map[string]any, pctx ProcessingContext, preferred ProviderID) (*StatementResult, error) {
	records := make([]*ProvenanceMap, len(rows))
	for i, row := range rows {
		records[i] = ProvenanceFromMap(row)
	}
	return s.ProcessRecords(ctx, records, pctx, preferred)
}

// ProcessRecords handles ordered, header-keyed records.
func (s *StatementService) ProcessRecords(ctx context.Context, records []*ProvenanceMap, pctx ProcessingContext, preferred ProviderID) (*StatementResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &StatementResult{Transactions: []CanonicalTransaction{}, Source: string(FileTypeRows)}
	return s.process(ctx, result, records, pctx, preferred), nil
}

func (s *StatementService) processGrid(ctx context.Context, result *StatementResult, grid Grid, pctx ProcessingContext, preferred ProviderID) *StatementResult {
	if len(grid) == 0 {
		result.Warnings = append(result.Warnings, "no table structure recovered: no transactions found")
		return result
	}
	headerIdx, found := FindHeaderRow(grid)
	result.HeaderRow, result.HeaderFound = headerIdx, found
	if !found {
		result.Warnings = append(result.Warnings, "no header row matched; using the first row as headers")
	}
	return s.process(ctx, result, RowsToRecords(grid, headerIdx), pctx, preferred)
}

func (s *StatementService) process(ctx context.Context, result *StatementResult, records []*ProvenanceMap, pctx ProcessingContext, preferred ProviderID) *StatementResult {
	log := logger.WithComponent(logger.FromContext(ctx), "statement")

	norm := NewNormalizer(unionKeys(records), s.now())
	candidates := make([]CanonicalTransaction, 0, len(records))
	noise := 0
	for i, rec := range records {
		if rec == nil {
			continue
		}
		c := norm.Normalize(rec, i)
		if !IsTransactionRow(recordCells(rec), c) {
			noise++
			continue
		}
		candidates = append(candidates, c)
	}
	log.Debug().
		Int("records", len(records)).
		Int("candidates", len(candidates)).
		Int("noise", noise).
		Str("source", result.Source).
		Msg("normalized statement rows")

	var enriched []map[string]any
	if s.enricher != nil && len(candidates) > 0 {
		er := s.enricher.Enrich(ctx, candidates, pctx, preferred)
		result.Attempts = er.Attempts
		if er.Applied {
			enriched = er.Enriched
			result.ProviderUsed = er.Provider
			result.Enrichment = er.Mode
		} else if len(er.Attempts) > 0 {
			result.Warnings = append(result.Warnings, "enrichment unavailable; returning locally normalized transactions")
		}
	}

	result.Transactions = FilterTransactions(Merge(candidates, enriched))
	if len(result.Transactions) == 0 {
		result.Warnings = append(result.Warnings, "no transactions found")
	}
	return result
}

// unionKeys returns every key across records in first-seen order.
func unionKeys(records []*ProvenanceMap) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, rec := range records {
		for _, k := range rec.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}
