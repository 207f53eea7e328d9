package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/abelbrown/rabbitbrain/internal/logging"
)

const (
	// DefaultGrokModel is used when no model is configured.
	DefaultGrokModel = "grok-4-fast"

	// DefaultGrokEndpoint is xAI's OpenAI-compatible chat endpoint.
	DefaultGrokEndpoint = "https://api.x.ai/v1/chat/completions"

	maxLoggedBody = 200
)

// Compile-time interface satisfaction check
var _ Provider = (*GrokProvider)(nil)

// GrokProvider implements the Provider interface for xAI's Grok models
type GrokProvider struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// GrokOption customizes a GrokProvider.
type GrokOption func(*GrokProvider)

// WithEndpoint overrides the chat completions URL.
func WithEndpoint(url string) GrokOption {
	return func(g *GrokProvider) {
		if url != "" {
			g.endpoint = url
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) GrokOption {
	return func(g *GrokProvider) {
		if c != nil {
			g.client = c
		}
	}
}

// NewGrokProvider creates a new Grok provider
func NewGrokProvider(apiKey, model string, opts ...GrokOption) *GrokProvider {
	if model == "" {
		model = DefaultGrokModel
	}
	g := &GrokProvider{
		apiKey:   apiKey,
		model:    model,
		endpoint: DefaultGrokEndpoint,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GrokProvider) Name() string {
	return "grok"
}

func (g *GrokProvider) Model() string {
	return g.model
}

func (g *GrokProvider) Available() bool {
	return g.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

func (g *GrokProvider) Generate(ctx context.Context, req Request) (Response, error) {
	if !g.Available() {
		logging.Warn("Grok provider not configured")
		return Response{}, fmt.Errorf("grok provider not configured")
	}

	logging.Debug("Grok API request starting", "model", g.model)

	// Grok uses OpenAI-compatible API format
	body := chatRequest{
		Model:       g.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.UserPrompt})
	if req.JSONMode {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(respBody)
		if len(snippet) > maxLoggedBody {
			snippet = snippet[:maxLoggedBody]
		}
		logging.Error("Grok API error", "status", resp.StatusCode, "body", snippet)
		return Response{}, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Model string `json:"model"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	content := ""
	if len(result.Choices) > 0 {
		content = result.Choices[0].Message.Content
	}

	logging.Info("Grok API response",
		"model", result.Model,
		"content_length", len(content))

	return Response{
		Content:     content,
		Model:       result.Model,
		RawResponse: string(respBody),
	}, nil
}
