// Command statement-cli extracts transactions from a local or gs:// statement
// and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"google.golang.org/api/option"

	"github.com/NavisaGlobal2/digitbooks-sub002/internal/config"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction/providers"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/logger"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/source"
)

func main() {
	file := flag.String("file", "", "statement path or gs://bucket/object URI")
	fileType := flag.String("type", "", "file type override (xlsx, xls, csv, pdf, rows)")
	pctx := flag.String("context", "", "processing context: revenue or expense")
	provider := flag.String("provider", "", "preferred enrichment provider")
	noEnrich := flag.Bool("no-enrich", false, "skip AI enrichment")
	anonymous := flag.Bool("gcs-anonymous", false, "read public GCS objects without credentials")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Usage: statement-cli -file <path|gs://bucket/object> [-type csv] [-context expense] [-provider gemini] [-no-enrich]")
		os.Exit(2)
	}
	if err := run(*file, *fileType, *pctx, *provider, *noEnrich, *anonymous, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(uri, fileType, pctx, provider string, noEnrich, anonymous, verbose bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New()
	if verbose {
		log = log.Level(logger.ParseLevel("debug"))
	} else {
		log = log.Level(logger.ParseLevel(cfg.LogLevel))
	}
	ctx := logger.WithContext(context.Background(), log)

	loader := &source.Loader{MaxBytes: cfg.MaxUploadBytes}
	if anonymous {
		loader.ClientOptions = []option.ClientOption{option.WithoutAuthentication()}
	}
	f, err := loader.Load(ctx, uri)
	if err != nil {
		return err
	}

	ft := extraction.DetectFileType(f.Name, f.Data)
	if fileType != "" {
		ft = extraction.ParseFileType(fileType)
		if ft == extraction.FileTypeUnknown {
			return &extraction.ExtractionError{
				Code:    extraction.ErrUnsupportedFileType,
				Message: fmt.Sprintf("unsupported file type %q", fileType),
			}
		}
	}

	enabled := cfg.EnableEnrichment && !noEnrich
	var enricher *extraction.Enricher
	if enabled {
		if enricher, err = providers.NewEnricher(ctx, cfg); err != nil {
			return err
		}
	}
	svc := extraction.NewStatementService(extraction.Config{Enricher: enricher, EnableEnrichment: enabled})

	result, err := svc.ProcessStatement(ctx, f.Data, ft, extraction.ParseProcessingContext(pctx), extraction.ProviderID(provider))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
