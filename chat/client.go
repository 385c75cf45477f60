// Package chat implements the chat pipeline: one user message in, one model
// reply out, both stored in the owner's history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Completer returns the model's reply to a single user message.
type Completer interface {
	Complete(ctx context.Context, message string) (string, error)
}

// GroqConfig configures an OpenAI-compatible chat endpoint (Groq by default).
type GroqConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

// GroqClient implements Completer with the chat completions API.
type GroqClient struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewGroqClient validates cfg and creates the client.
func NewGroqClient(cfg GroqConfig) (*GroqClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("chat: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3-8b-8192"
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	return &GroqClient{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Complete sends message as the only user turn.
func (c *GroqClient) Complete(ctx context.Context, message string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", classifyCompletionError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindProviderBadResponse, Err: errors.New("response has no choices")}
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", &Error{Kind: KindProviderBadResponse, Err: errors.New("response message is empty")}
	}
	return reply, nil
}

// classifyCompletionError reads the status go-openai parsed. Errors with no
// status (network, timeouts) are ProviderUnavailable.
func classifyCompletionError(err error) *Error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	kind := KindProviderUnavailable
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindProviderAuthError
	case http.StatusTooManyRequests:
		kind = KindProviderQuotaExceeded
	}
	return &Error{Kind: kind, Err: fmt.Errorf("chat completion failed: %w", err)}
}
