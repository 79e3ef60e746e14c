// Package llm provides the narration text generator backed by an
// OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/tavernkeep/dm-engine/internal/errors"
)

const (
	defaultModel      = "gpt-4o-mini"
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 3
	defaultMaxTokens  = 600

	systemPrompt = "You are a Dungeon Master narrating a tabletop fantasy game. " +
		"Follow the speaker-tag contract in each request exactly."
)

// Config holds the OpenAI client configuration. BaseURL may point at
// any OpenAI-compatible endpoint (OpenRouter, a local Ollama, etc.).
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

// Validate checks required fields
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("apiKey", c.APIKey, vb)
	return vb.Build()
}

// Client calls a chat completion API to generate narration
type Client struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	log        *slog.Logger
}

// New creates a Client
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		client:     openai.NewClientWithConfig(apiConfig),
		model:      model,
		timeout:    timeout,
		maxRetries: maxRetries,
		log:        log,
	}, nil
}

// Generate produces narration for a prompt, retrying transient
// failures with linear backoff.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   defaultMaxTokens,
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		response, err := c.client.CreateChatCompletion(ctx, request)
		if err != nil {
			lastErr = err
			c.log.Warn("chat completion failed",
				"attempt", attempt,
				"error", err)
			if attempt < c.maxRetries {
				select {
				case <-time.After(time.Duration(attempt) * time.Second):
				case <-ctx.Done():
					return "", errors.WrapWithCode(ctx.Err(), errors.CodeDeadlineExceeded,
						"narration generation timed out")
				}
			}
			continue
		}

		if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
			lastErr = errors.Internal("empty completion response")
			continue
		}
		return response.Choices[0].Message.Content, nil
	}

	return "", errors.WrapWithCode(lastErr, errors.CodeUnavailable,
		"narration generation failed after retries")
}
