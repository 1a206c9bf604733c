// Package providers implements completion providers for statement enrichment.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/NavisaGlobal2/digitbooks-sub002/internal/config"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction"
)

// DefaultGeminiModel is used when settings name no model.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini calls the Gemini API through the genai SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini provider. BaseURL overrides the API endpoint.
func NewGemini(ctx context.Context, s config.ProviderSettings) (*Gemini, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  s.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if s.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: s.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create genai client: %w", err)
	}
	model := s.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) ID() extraction.ProviderID { return extraction.ProviderGemini }

func (g *Gemini) Complete(ctx context.Context, p extraction.Prompt) (string, error) {
	temperature := float32(0.1)
	cfg := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	}
	if p.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: p.System}}}
	}
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: p.User}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", extraction.NewProviderError(extraction.ProviderGemini, extraction.ProviderMalformedResponse, "empty response from model", nil)
	}
	return text, nil
}

// classifyGeminiError maps SDK errors to provider error kinds.
func classifyGeminiError(err error) *extraction.ProviderError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		kind := extraction.ClassifyHTTPStatus(apiErr.Code)
		return extraction.NewProviderError(extraction.ProviderGemini, kind, fmt.Sprintf("status %d %s", apiErr.Code, apiErr.Status), err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		kind := extraction.ClassifyHTTPStatus(apiErrPtr.Code)
		return extraction.NewProviderError(extraction.ProviderGemini, kind, fmt.Sprintf("status %d %s", apiErrPtr.Code, apiErrPtr.Status), err)
	}
	return extraction.NewProviderError(extraction.ProviderGemini, extraction.ProviderUnavailable, "request failed", err)
}
