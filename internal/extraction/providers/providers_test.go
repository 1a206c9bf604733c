package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/NavisaGlobal2/digitbooks-sub002/internal/config"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction"
)

var testPrompt = extraction.Prompt{System: "Return a JSON array.", User: `[{"description":"POS"}]`}

func chatServer(t *testing.T, status int, body string, seen *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func providerKind(t *testing.T, err error) extraction.ProviderErrorKind {
	t.Helper()
	var pe *extraction.ProviderError
	require.True(t, errors.As(err, &pe), "expected ProviderError, got %v", err)
	return pe.Kind
}

func TestChatCompletion_Success(t *testing.T) {
	var req openai.ChatCompletionRequest
	srv := chatServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "  [{\"category\": \"Groceries\"}]  "}, "finish_reason": "stop"}]
	}`, &req)

	p, err := NewChatCompletion(extraction.ProviderOpenAI, config.ProviderSettings{ID: "openai", APIKey: "test-key", BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	assert.Equal(t, extraction.ProviderOpenAI, p.ID())

	out, err := p.Complete(context.Background(), testPrompt)
	require.NoError(t, err)
	assert.Equal(t, `[{"category": "Groceries"}]`, out)

	assert.Equal(t, DefaultOpenAIModel, req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, testPrompt.System, req.Messages[0].Content)
	assert.Equal(t, testPrompt.User, req.Messages[1].Content)
}

func TestChatCompletion_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   extraction.ProviderErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`, extraction.ProviderAuthError},
		{"insufficient balance", http.StatusPaymentRequired, `{"error": {"message": "Insufficient Balance", "type": "unknown_error"}}`, extraction.ProviderAuthError},
		{"rate limited", http.StatusTooManyRequests, `{"error": {"message": "slow down", "type": "rate_limit"}}`, extraction.ProviderRateLimited},
		{"overloaded", http.StatusServiceUnavailable, `upstream unavailable`, extraction.ProviderOverloaded},
		{"no choices", http.StatusOK, `{"id": "x", "object": "chat.completion", "choices": []}`, extraction.ProviderMalformedResponse},
		{"empty content", http.StatusOK, `{"id": "x", "object": "chat.completion", "choices": [{"index": 0, "message": {"role": "assistant", "content": "  "}}]}`, extraction.ProviderMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.status, tt.body, nil)
			p, err := NewChatCompletion(extraction.ProviderDeepSeek, config.ProviderSettings{ID: "deepseek", APIKey: "test-key", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = p.Complete(context.Background(), testPrompt)
			require.Error(t, err)
			assert.Equal(t, tt.want, providerKind(t, err))

			var pe *extraction.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, extraction.ProviderDeepSeek, pe.Provider)
		})
	}
}

func TestChatCompletion_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p, err := NewChatCompletion(extraction.ProviderOpenAI, config.ProviderSettings{APIKey: "test-key", BaseURL: url})
	require.NoError(t, err)
	_, err = p.Complete(context.Background(), testPrompt)
	assert.Equal(t, extraction.ProviderUnavailable, providerKind(t, err))
}

func TestNewChatCompletion_Defaults(t *testing.T) {
	ds, err := NewChatCompletion(extraction.ProviderDeepSeek, config.ProviderSettings{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultDeepSeekModel, ds.model)

	oa, err := NewChatCompletion(extraction.ProviderOpenAI, config.ProviderSettings{APIKey: "k", Model: "gpt-4.1"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", oa.model)

	_, err = NewChatCompletion(extraction.ProviderOpenAI, config.ProviderSettings{})
	assert.Error(t, err)
}

func geminiServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":generateContent")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGemini_Complete(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     string
		wantKind extraction.ProviderErrorKind
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"candidates": [{"content": {"role": "model", "parts": [{"text": "[{\"category\": \"Rent\"}]"}]}}]}`,
			want:   `[{"category": "Rent"}]`,
		},
		{
			name:     "empty response",
			status:   http.StatusOK,
			body:     `{"candidates": [{"content": {"role": "model", "parts": [{"text": "  "}]}}]}`,
			wantKind: extraction.ProviderMalformedResponse,
		},
		{
			name:     "bad key",
			status:   http.StatusUnauthorized,
			body:     `{"error": {"code": 401, "message": "API key not valid", "status": "UNAUTHENTICATED"}}`,
			wantKind: extraction.ProviderAuthError,
		},
		{
			name:     "forbidden",
			status:   http.StatusForbidden,
			body:     `{"error": {"code": 403, "message": "permission denied", "status": "PERMISSION_DENIED"}}`,
			wantKind: extraction.ProviderAuthError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := geminiServer(t, tt.status, tt.body)
			g, err := NewGemini(context.Background(), config.ProviderSettings{ID: "gemini", APIKey: "test-key", BaseURL: srv.URL})
			require.NoError(t, err)
			assert.Equal(t, extraction.ProviderGemini, g.ID())

			out, err := g.Complete(context.Background(), testPrompt)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, providerKind(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), config.ProviderSettings{ID: "gemini"})
	assert.Error(t, err)
}

func TestClassifyGeminiError(t *testing.T) {
	assert.Equal(t, extraction.ProviderRateLimited, classifyGeminiError(genaiAPIError(429)).Kind)
	assert.Equal(t, extraction.ProviderOverloaded, classifyGeminiError(genaiAPIError(503)).Kind)
	assert.Equal(t, extraction.ProviderUnavailable, classifyGeminiError(errors.New("dial tcp: refused")).Kind)
}

func genaiAPIError(code int) error {
	return fmt.Errorf("generate content: %w", genai.APIError{Code: code, Status: http.StatusText(code)})
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	p, err := New(ctx, config.ProviderSettings{ID: "deepseek", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, extraction.ProviderDeepSeek, p.ID())

	p, err = New(ctx, config.ProviderSettings{ID: "gemini", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, extraction.ProviderGemini, p.ID())

	_, err = New(ctx, config.ProviderSettings{ID: "claude", APIKey: "k"})
	assert.Error(t, err)
}

func TestNewEnricher_FromConfig(t *testing.T) {
	cfg := &config.Config{
		ProviderOrder:  []string{"deepseek", "gemini", "openai"},
		DeepSeekAPIKey: "ds-key",
		OpenAIAPIKey:   "oa-key",
	}
	ps, err := FromConfig(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, extraction.ProviderDeepSeek, ps[0].ID())
	assert.Equal(t, extraction.ProviderOpenAI, ps[1].ID())

	e, err := NewEnricher(context.Background(), cfg)
	require.NoError(t, err)
	assert.Len(t, e.Providers(), 2)
}
