package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/NavisaGlobal2/digitbooks-sub002/internal/api"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/config"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction/providers"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewJSON(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var enricher *extraction.Enricher
	if cfg.EnableEnrichment {
		enricher, err = providers.NewEnricher(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize providers")
		}
		ids := make([]string, 0)
		for _, p := range enricher.Providers() {
			ids = append(ids, string(p.ID()))
		}
		if len(ids) == 0 {
			log.Warn().Msg("No provider credentials configured; enrichment will be skipped")
		} else {
			log.Info().Strs("providers", ids).Msg("Enrichment providers configured")
		}
	}

	svc := extraction.NewStatementService(extraction.Config{
		Enricher:         enricher,
		EnableEnrichment: cfg.EnableEnrichment,
	})

	h := api.NewHandler(svc, cfg.MaxUploadBytes, log)
	if cfg.JobTTL > 0 {
		jobs := extraction.NewJobStore(cfg.JobTTL)
		defer jobs.Stop()
		h.EnableJobs(ctx, jobs)
		log.Info().Dur("ttl", cfg.JobTTL).Msg("Async statement jobs enabled")
	}
	var handler http.Handler = h.Routes()
	handler = api.Logger(log)(handler)
	handler = api.Recovery(log)(handler)
	handler = api.CORS(handler, cfg.CORSAllowedOrigins)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("Starting server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
