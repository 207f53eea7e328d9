package brain

import (
	"context"
	"errors"
	"fmt"
)

// Provider is the interface for LLM chat providers.
type Provider interface {
	// Name returns the provider name (e.g., "grok")
	Name() string

	// Model returns the model the provider requests.
	Model() string

	// Available returns true if the provider is configured and ready
	Available() bool

	// Generate sends a prompt and returns the response
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request is a prompt request to a provider
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
	JSONMode     bool // ask for a JSON object response
}

// Response is the provider's response
type Response struct {
	Content     string
	Model       string
	RawResponse string // The raw API response body for logging/debugging
}

// ErrMalformedResponse marks a response that arrived but could not be
// decoded. Transport and status failures are not wrapped with it.
var ErrMalformedResponse = errors.New("malformed provider response")

// StatusError is a non-2xx provider answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}
