// Package llm wraps the chat-completion model used to distill transcripts
// and draft itineraries.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// ErrNotConfigured is returned by the disabled completer.
var ErrNotConfigured = errors.New("llm not configured")

// ErrEmptyCompletion is returned when the model answers with no text.
var ErrEmptyCompletion = errors.New("llm returned no content")

// Completer turns a system and user prompt into model text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config configures the OpenAI-compatible client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAI is a Completer backed by an OpenAI-compatible chat endpoint.
type OpenAI struct {
	client openai.Client
	model  string
}

// New returns an OpenAI completer, or a Disabled one when no API key is set.
func New(cfg Config) Completer {
	if cfg.APIKey == "" {
		return Disabled{}
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}
}

// Complete sends one system and one user message.
func (o *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// Disabled always fails with ErrNotConfigured so callers take their
// fallback path.
type Disabled struct{}

func (Disabled) Complete(context.Context, string, string) (string, error) {
	return "", ErrNotConfigured
}
