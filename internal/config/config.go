// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProviderSettings describes one configured completion provider.
type ProviderSettings struct {
	ID      string
	APIKey  string
	Model   string
	BaseURL string
}

// Config holds configuration for the statement service.
type Config struct {
	Port               string
	LogLevel           string
	GeminiAPIKey       string
	GeminiModel        string
	OpenAIAPIKey       string
	OpenAIModel        string
	OpenAIBaseURL      string
	DeepSeekAPIKey     string
	DeepSeekModel      string
	DeepSeekBaseURL    string
	ProviderOrder      []string
	EnableEnrichment   bool
	SampleThreshold    int
	ProviderTimeout    time.Duration
	CORSAllowedOrigins []string
	MaxUploadBytes     int64
	// JobTTL bounds how long async job results are kept; zero disables jobs.
	JobTTL time.Duration
}

const (
	defaultPort            = "8111"
	defaultGeminiModel     = "gemini-2.5-flash"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultDeepSeekModel   = "deepseek-chat"
	defaultDeepSeekBaseURL = "https://api.deepseek.com/v1"
	defaultSampleThreshold = 40
	defaultProviderTimeout = 60 * time.Second
	defaultMaxUploadBytes  = 20 << 20
	defaultJobTTL          = time.Hour
)

var defaultProviderOrder = []string{"gemini", "openai", "deepseek"}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an env lookup function.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		Port:            get("PORT", defaultPort),
		LogLevel:        get("LOG_LEVEL", "info"),
		GeminiAPIKey:    get("GEMINI_API_KEY", ""),
		GeminiModel:     get("GEMINI_MODEL", defaultGeminiModel),
		OpenAIAPIKey:    get("OPENAI_API_KEY", ""),
		OpenAIModel:     get("OPENAI_MODEL", defaultOpenAIModel),
		OpenAIBaseURL:   get("OPENAI_BASE_URL", ""),
		DeepSeekAPIKey:  get("DEEPSEEK_API_KEY", ""),
		DeepSeekModel:   get("DEEPSEEK_MODEL", defaultDeepSeekModel),
		DeepSeekBaseURL: get("DEEPSEEK_BASE_URL", defaultDeepSeekBaseURL),
		ProviderOrder:   splitList(get("PROVIDER_ORDER", "")),
		MaxUploadBytes:  defaultMaxUploadBytes,
	}
	if len(cfg.ProviderOrder) == 0 {
		cfg.ProviderOrder = append([]string(nil), defaultProviderOrder...)
	}

	var err error
	if cfg.EnableEnrichment, err = strconv.ParseBool(get("ENRICHMENT_ENABLED", "true")); err != nil {
		return nil, fmt.Errorf("ENRICHMENT_ENABLED: %w", err)
	}
	if cfg.SampleThreshold, err = strconv.Atoi(get("ENRICH_SAMPLE_THRESHOLD", strconv.Itoa(defaultSampleThreshold))); err != nil {
		return nil, fmt.Errorf("ENRICH_SAMPLE_THRESHOLD: %w", err)
	}
	if cfg.ProviderTimeout, err = time.ParseDuration(get("PROVIDER_TIMEOUT", defaultProviderTimeout.String())); err != nil {
		return nil, fmt.Errorf("PROVIDER_TIMEOUT: %w", err)
	}
	if cfg.JobTTL, err = time.ParseDuration(get("JOB_TTL", defaultJobTTL.String())); err != nil {
		return nil, fmt.Errorf("JOB_TTL: %w", err)
	}
	if v := get("MAX_UPLOAD_BYTES", ""); v != "" {
		if cfg.MaxUploadBytes, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
		}
	}

	cfg.CORSAllowedOrigins = splitList(get("CORS_ALLOWED_ORIGINS", "http://localhost:1234,http://127.0.0.1:1234"))

	for _, id := range cfg.ProviderOrder {
		switch id {
		case "gemini", "openai", "deepseek":
		default:
			return nil, fmt.Errorf("PROVIDER_ORDER: unknown provider %q", id)
		}
	}
	return cfg, nil
}

// Providers returns the providers that have credentials, in PROVIDER_ORDER.
func (c *Config) Providers() []ProviderSettings {
	var out []ProviderSettings
	for _, id := range c.ProviderOrder {
		var s ProviderSettings
		switch id {
		case "gemini":
			s = ProviderSettings{ID: id, APIKey: c.GeminiAPIKey, Model: c.GeminiModel}
		case "openai":
			s = ProviderSettings{ID: id, APIKey: c.OpenAIAPIKey, Model: c.OpenAIModel, BaseURL: c.OpenAIBaseURL}
		case "deepseek":
			s = ProviderSettings{ID: id, APIKey: c.DeepSeekAPIKey, Model: c.DeepSeekModel, BaseURL: c.DeepSeekBaseURL}
		}
		if s.APIKey == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
