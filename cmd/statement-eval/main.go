// Command statement-eval scores local normalization and each configured
// enrichment provider against the embedded statement fixtures.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/NavisaGlobal2/digitbooks-sub002/internal/config"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction/eval"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction/providers"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/logger"
)

func main() {
	pctx := flag.String("context", "", "processing context: revenue or expense")
	localOnly := flag.Bool("local-only", false, "skip provider strategies")
	flag.Parse()

	if err := run(extraction.ParseProcessingContext(*pctx), *localOnly); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(pctx extraction.ProcessingContext, localOnly bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New().Level(logger.ParseLevel(cfg.LogLevel))
	ctx := logger.WithContext(context.Background(), log)

	fixtures, err := eval.LoadFixtures()
	if err != nil {
		return err
	}

	strategies := map[string]eval.StrategyFunc{
		"local": eval.ServiceStrategy(extraction.NewStatementService(extraction.Config{}), pctx, extraction.ProviderNone),
	}
	if !localOnly {
		ps, err := providers.FromConfig(ctx, cfg)
		if err != nil {
			return err
		}
		// One enricher per provider so a failure shows up as a local fallback
		// instead of silently scoring the next provider.
		for _, p := range ps {
			enricher := extraction.NewEnricher(extraction.EnricherConfig{
				Providers:       []extraction.CompletionProvider{p},
				SampleThreshold: cfg.SampleThreshold,
				SampleSize:      extraction.DefaultSampleSize,
				Retry:           extraction.DefaultProviderRetryConfig,
				CallTimeout:     cfg.ProviderTimeout,
			})
			svc := extraction.NewStatementService(extraction.Config{Enricher: enricher, EnableEnrichment: true})
			strategies[string(p.ID())] = eval.ServiceStrategy(svc, pctx, p.ID())
		}
		if len(ps) == 0 {
			log.Warn().Msg("no provider credentials configured; scoring local normalization only")
		}
	}

	results := eval.RunEval(ctx, strategies, fixtures)
	eval.PrintSummary(os.Stdout, results)
	return nil
}
