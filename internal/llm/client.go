// Package llm wraps an OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrDisabled is returned when no API key is configured
var ErrDisabled = errors.New("llm client not configured")

// Completer produces a completion for a system and user prompt
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client calls the chat completions endpoint in JSON mode
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a client. baseURL may point at any OpenAI-compatible
// server and should include the /v1 suffix; empty uses the public API.
func NewClient(apiKey, model, baseURL string) *Client {
	if apiKey == "" {
		return &Client{model: model}
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Client{client: openai.NewClientWithConfig(cfg), model: model}
}

// Enabled reports whether an API key was configured
func (c *Client) Enabled() bool {
	return c.client != nil
}

// Complete sends one chat completion request and returns the first choice
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.client == nil {
		return "", ErrDisabled
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
