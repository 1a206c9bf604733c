package providers

import (
	"context"
	"fmt"

	"github.com/NavisaGlobal2/digitbooks-sub002/internal/config"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction"
)

// New builds the provider named by s.ID.
func New(ctx context.Context, s config.ProviderSettings) (extraction.CompletionProvider, error) {
	switch extraction.ProviderID(s.ID) {
	case extraction.ProviderGemini:
		return NewGemini(ctx, s)
	case extraction.ProviderOpenAI, extraction.ProviderDeepSeek:
		return NewChatCompletion(extraction.ProviderID(s.ID), s)
	default:
		return nil, fmt.Errorf("unknown provider %q", s.ID)
	}
}

// FromConfig builds every provider that has credentials, in configured order.
func FromConfig(ctx context.Context, cfg *config.Config) ([]extraction.CompletionProvider, error) {
	var out []extraction.CompletionProvider
	for _, s := range cfg.Providers() {
		p, err := New(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", s.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// NewEnricher wires the configured providers into an Enricher.
func NewEnricher(ctx context.Context, cfg *config.Config) (*extraction.Enricher, error) {
	ps, err := FromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return extraction.NewEnricher(extraction.EnricherConfig{
		Providers:       ps,
		SampleThreshold: cfg.SampleThreshold,
		SampleSize:      extraction.DefaultSampleSize,
		Retry:           extraction.DefaultProviderRetryConfig,
		CallTimeout:     cfg.ProviderTimeout,
	}), nil
}
