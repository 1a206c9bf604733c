package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NavisaGlobal2/digitbooks-sub002/internal/logger"
)

const (
	DefaultSampleThreshold = 40
	DefaultSampleSize      = 5
)

// EnrichmentMode is how much data was sent to the provider.
type EnrichmentMode string

const (
	ModeFull   EnrichmentMode = "full"
	ModeSample EnrichmentMode = "sample"
)

// EnricherConfig enumerates the available providers explicitly; the
// enricher never reads credentials from the environment.
type EnricherConfig struct {
	Providers       []CompletionProvider
	SampleThreshold int           // up to this many candidates are sent in full
	SampleSize      int           // rows sent in sample mode
	Retry           RetryConfig   // applied per provider to retryable errors
	CallTimeout     time.Duration // per provider, zero means none
}

// Attempt records one provider's outcome.
type Attempt struct {
	Provider ProviderID        `json:"provider"`
	Mode     EnrichmentMode    `json:"mode"`
	Kind     ProviderErrorKind `json:"kind,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// EnrichmentResult is the outcome of Enrich. When Applied is false the
// caller keeps its local candidates unchanged.
type EnrichmentResult struct {
	Enriched []map[string]any
	Mapping  *FieldMapping
	Mode     EnrichmentMode
	Provider ProviderID
	Attempts []Attempt
	Applied  bool
}

// Enricher walks an ordered list of providers until one returns a valid
// response.
type Enricher struct {
	cfg EnricherConfig
}

// NewEnricher creates an Enricher, filling zero config values with defaults.
func NewEnricher(cfg EnricherConfig) *Enricher {
	if cfg.SampleThreshold <= 0 {
		cfg.SampleThreshold = DefaultSampleThreshold
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultSampleSize
	}
	return &Enricher{cfg: cfg}
}

// Providers returns the configured providers in their default order.
func (e *Enricher) Providers() []CompletionProvider {
	return append([]CompletionProvider(nil), e.cfg.Providers...)
}

// providerOrder puts the preferred provider first, keeping the rest in
// configured order.
func (e *Enricher) providerOrder(preferred ProviderID) ([]CompletionProvider, bool) {
	ordered := make([]CompletionProvider, 0, len(e.cfg.Providers))
	found := false
	for _, p := range e.cfg.Providers {
		if p.ID() == preferred {
			ordered = append(ordered, p)
			found = true
		}
	}
	for _, p := range e.cfg.Providers {
		if p.ID() != preferred {
			ordered = append(ordered, p)
		}
	}
	return ordered, found
}

// Enrich sends candidates to the first provider that answers with a valid
// response. Provider failures never propagate: with every provider failed
// the result is simply not Applied.
func (e *Enricher) Enrich(ctx context.Context, candidates []CanonicalTransaction, pctx ProcessingContext, preferred ProviderID) EnrichmentResult {
	log := logger.WithComponent(logger.FromContext(ctx), "enricher")
	var result EnrichmentResult
	if len(candidates) == 0 {
		return result
	}

	providers, found := e.providerOrder(preferred)
	if preferred != ProviderNone && !found {
		result.Attempts = append(result.Attempts, Attempt{
			Provider: preferred,
			Kind:     ProviderUnavailable,
			Error:    "provider not configured",
		})
	}
	if len(providers) == 0 {
		return result
	}

	mode := ModeFull
	var headers []string
	var prompt Prompt
	var err error
	if len(candidates) > e.cfg.SampleThreshold {
		mode = ModeSample
		sample := make([]*ProvenanceMap, 0, e.cfg.SampleSize)
		for i := 0; i < len(candidates) && i < e.cfg.SampleSize; i++ {
			sample = append(sample, candidates[i].PreservedColumns)
		}
		headers = unionKeys(sample)
		prompt, err = BuildSamplePrompt(headers, sample, pctx)
	} else {
		prompt, err = BuildFullPrompt(candidates, pctx)
	}
	if err != nil {
		log.Warn().Err(err).Msg("could not build enrichment prompt")
		return result
	}
	result.Mode = mode

	for _, p := range providers {
		if ctx.Err() != nil {
			break
		}
		raw, err := e.complete(ctx, p, prompt)
		if err == nil {
			switch mode {
			case ModeFull:
				result.Enriched, err = parseFull(p.ID(), raw, len(candidates))
			case ModeSample:
				result.Mapping, err = parseSample(p.ID(), raw, headers)
				if err == nil {
					result.Enriched = ApplyFieldMapping(candidates, *result.Mapping)
				}
			}
		}
		if err != nil {
			kind := ProviderErrorKindOf(err)
			result.Attempts = append(result.Attempts, Attempt{Provider: p.ID(), Mode: mode, Kind: kind, Error: err.Error()})
			result.Enriched, result.Mapping = nil, nil
			log.Warn().Str("provider", string(p.ID())).Str("kind", string(kind)).Err(err).Msg("provider failed, trying next")
			continue
		}
		result.Attempts = append(result.Attempts, Attempt{Provider: p.ID(), Mode: mode})
		result.Provider = p.ID()
		result.Applied = true
		log.Debug().Str("provider", string(p.ID())).Str("mode", string(mode)).Int("rows", len(candidates)).Msg("enrichment applied")
		return result
	}
	return result
}

// complete calls one provider, retrying rate-limit and overload errors.
// Errors that arrive unclassified are treated as Unavailable.
func (e *Enricher) complete(ctx context.Context, p CompletionProvider, prompt Prompt) (string, error) {
	if e.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()
	}
	raw, err := WithRetry(ctx, e.cfg.Retry, func(ctx context.Context) (string, error) {
		out, err := p.Complete(ctx, prompt)
		if err == nil {
			return out, nil
		}
		var pe *ProviderError
		if errors.As(err, &pe) {
			return "", err
		}
		return "", NewProviderError(p.ID(), ProviderUnavailable, "call failed", err)
	})
	if err != nil {
		var pe *ProviderError
		if !errors.As(err, &pe) {
			err = NewProviderError(p.ID(), ProviderUnavailable, "call aborted", err)
		}
		return "", err
	}
	return raw, nil
}

func parseFull(id ProviderID, raw string, n int) ([]map[string]any, error) {
	items, err := ParseTransactionsResponse(raw)
	if err != nil {
		return nil, NewProviderError(id, ProviderMalformedResponse, "invalid transactions response", err)
	}
	if len(items) > n {
		items = items[:n]
	}
	return items, nil
}

func parseSample(id ProviderID, raw string, headers []string) (*FieldMapping, error) {
	m, err := ParseMappingResponse(raw)
	if err != nil {
		return nil, NewProviderError(id, ProviderMalformedResponse, "invalid mapping response", err)
	}
	resolved := resolveMapping(*m, headers)
	if resolved.IsEmpty() {
		return nil, NewProviderError(id, ProviderMalformedResponse, fmt.Sprintf("mapping %+v names no known column", *m), nil)
	}
	return &resolved, nil
}

// resolveMapping replaces provider column names with the matching header
// labels, dropping names that match no header.
func resolveMapping(m FieldMapping, headers []string) FieldMapping {
	byFold := make(map[string]string, len(headers))
	for _, h := range headers {
		if _, ok := byFold[foldHeader(h)]; !ok {
			byFold[foldHeader(h)] = h
		}
	}
	find := func(name string) string {
		if name == "" {
			return ""
		}
		return byFold[foldHeader(name)]
	}
	return FieldMapping{
		Date:        find(m.Date),
		Description: find(m.Description),
		Amount:      find(m.Amount),
		Debit:       find(m.Debit),
		Credit:      find(m.Credit),
		Type:        find(m.Type),
	}
}

// ApplyFieldMapping re-reads every candidate's preserved columns through a
// provider mapping and returns merge overrides. Fields the mapping cannot
// fill are omitted so the local values stand.
func ApplyFieldMapping(candidates []CanonicalTransaction, fm FieldMapping) []map[string]any {
	mapping := ColumnMapping{
		Date:   fm.Date,
		Credit: fm.Credit,
		Debit:  fm.Debit,
		Type:   fm.Type,
		Amount: fm.Amount,
	}
	if fm.Description != "" {
		mapping.Description = []string{fm.Description}
	}

	out := make([]map[string]any, len(candidates))
	for i, c := range candidates {
		override := map[string]any{}
		rec := c.PreservedColumns
		if v := rec.Text(fm.Date); v != "" {
			override["date"] = v
		}
		if v := rec.Text(fm.Description); v != "" {
			override["description"] = v
		}
		if fm.Amount != "" || fm.Debit != "" || fm.Credit != "" {
			n := NormalizeRecord(rec, mapping, time.Time{}, i)
			if n.Amount != 0 {
				override["amount"] = n.Amount
				override["type"] = string(n.Type)
			}
		}
		out[i] = override
	}
	return out
}
