package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/NavisaGlobal2/digitbooks-sub002/internal/config"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction"
)

const (
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultDeepSeekModel   = "deepseek-chat"
	DefaultDeepSeekBaseURL = "https://api.deepseek.com/v1"
)

// ChatCompletion calls an OpenAI-compatible chat completions API. DeepSeek
// is served by the same client pointed at its base URL.
type ChatCompletion struct {
	id     extraction.ProviderID
	client *openai.Client
	model  string
}

// NewChatCompletion creates an OpenAI-compatible provider for id.
func NewChatCompletion(id extraction.ProviderID, s config.ProviderSettings) (*ChatCompletion, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", id)
	}
	cfg := openai.DefaultConfig(s.APIKey)
	model := s.Model
	switch id {
	case extraction.ProviderDeepSeek:
		cfg.BaseURL = DefaultDeepSeekBaseURL
		if model == "" {
			model = DefaultDeepSeekModel
		}
	default:
		if model == "" {
			model = DefaultOpenAIModel
		}
	}
	if s.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(s.BaseURL, "/")
	}
	return &ChatCompletion{
		id:     id,
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (c *ChatCompletion) ID() extraction.ProviderID { return c.id }

func (c *ChatCompletion) Complete(ctx context.Context, p extraction.Prompt) (string, error) {
	var messages []openai.ChatCompletionMessage
	if p.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: p.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: p.User,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.1,
	})
	if err != nil {
		return "", c.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", extraction.NewProviderError(c.id, extraction.ProviderMalformedResponse, "no choices in response", nil)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", extraction.NewProviderError(c.id, extraction.ProviderMalformedResponse, "empty response from model", nil)
	}
	return text, nil
}

// classify maps go-openai errors to provider error kinds.
func (c *ChatCompletion) classify(err error) *extraction.ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return extraction.NewProviderError(c.id, extraction.ClassifyHTTPStatus(apiErr.HTTPStatusCode),
			fmt.Sprintf("status %d", apiErr.HTTPStatusCode), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return extraction.NewProviderError(c.id, extraction.ClassifyHTTPStatus(reqErr.HTTPStatusCode),
			fmt.Sprintf("status %d", reqErr.HTTPStatusCode), err)
	}
	return extraction.NewProviderError(c.id, extraction.ProviderUnavailable, "request failed", err)
}
