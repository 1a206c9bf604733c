package extraction

import (
	"errors"
	"fmt"
)

// ExtractionErrorCode represents specific extraction error types.
type ExtractionErrorCode string

const (
	ErrInvalidDocument     ExtractionErrorCode = "INVALID_DOCUMENT"
	ErrUnsupportedFileType ExtractionErrorCode = "UNSUPPORTED_FILE_TYPE"
	ErrSourceFetchFailed   ExtractionErrorCode = "SOURCE_FETCH_FAILED"
)

// ExtractionError is a structured error for boundary-level failures.
// The pipeline itself recovers locally and never returns one for bad content.
type ExtractionError struct {
	Code      ExtractionErrorCode
	Message   string
	Retryable bool
	Cause     error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether this error is retryable.
func (e *ExtractionError) IsRetryable() bool {
	return e.Retryable
}

// ProviderErrorKind classifies completion provider failures.
type ProviderErrorKind string

const (
	ProviderAuthError         ProviderErrorKind = "AUTH_ERROR"
	ProviderRateLimited       ProviderErrorKind = "RATE_LIMITED"
	ProviderOverloaded        ProviderErrorKind = "OVERLOADED"
	ProviderMalformedResponse ProviderErrorKind = "MALFORMED_RESPONSE"
	ProviderUnavailable       ProviderErrorKind = "UNAVAILABLE"
)

// ProviderError is returned at the completion provider boundary.
type ProviderError struct {
	Kind     ProviderErrorKind
	Provider ProviderID
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s provider %s: %s", e.Provider, e.Kind, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether calling the same provider again may succeed.
func (e *ProviderError) IsRetryable() bool {
	return e.Kind == ProviderRateLimited || e.Kind == ProviderOverloaded
}

// NewProviderError builds a ProviderError.
func NewProviderError(provider ProviderID, kind ProviderErrorKind, message string, cause error) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Message: message, Cause: cause}
}

// ClassifyHTTPStatus maps an HTTP status code from a provider API to an error kind.
func ClassifyHTTPStatus(status int) ProviderErrorKind {
	switch {
	case status == 401 || status == 403:
		return ProviderAuthError
	case status == 402:
		// Exhausted balance.
		return ProviderAuthError
	case status == 429:
		return ProviderRateLimited
	case status >= 500:
		return ProviderOverloaded
	default:
		return ProviderUnavailable
	}
}

// ProviderErrorKindOf returns the kind of a provider error, or Unavailable
// for errors that did not come classified.
func ProviderErrorKindOf(err error) ProviderErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ProviderUnavailable
}
