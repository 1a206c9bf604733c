package extraction

import "context"

//go:generate mockgen -source=provider.go -destination=provider_mock.go -package=extraction

// ProviderID names a completion provider.
type ProviderID string

const (
	ProviderGemini   ProviderID = "gemini"
	ProviderOpenAI   ProviderID = "openai"
	ProviderDeepSeek ProviderID = "deepseek"
	ProviderNone     ProviderID = ""
)

// ProcessingContext steers the natural-language instructions sent to a
// provider. It does not affect local extraction.
type ProcessingContext string

const (
	ContextRevenue ProcessingContext = "revenue"
	ContextExpense ProcessingContext = "expense"
	ContextGeneral ProcessingContext = ""
)

// ParseProcessingContext accepts "revenue", "expense" or anything else as general.
func ParseProcessingContext(s string) ProcessingContext {
	switch ProcessingContext(s) {
	case ContextRevenue, ContextExpense:
		return ProcessingContext(s)
	default:
		return ContextGeneral
	}
}

// Prompt is a provider-neutral completion request.
type Prompt struct {
	System string
	User   string
}

// CompletionProvider is a text-completion capability. Implementations return
// *ProviderError so callers can decide between retry and fallback.
type CompletionProvider interface {
	ID() ProviderID
	Complete(ctx context.Context, prompt Prompt) (string, error)
}
