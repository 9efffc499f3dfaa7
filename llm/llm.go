// Package llm provides fraudflow.Completer implementations over hosted chat
// models, built on eino chat model components.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sicko7947/fraudflow"
)

// Provider names accepted by New
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Default models per provider
const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOpenAIModel    = "gpt-4o"
)

const maxTokens = 4096

// Settings selects and configures a provider
type Settings struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the provider API root, e.g. https://api.openai.com/v1
	BaseURL string
}

// New builds the completer for settings.Provider
func New(ctx context.Context, settings Settings) (*ChatCompleter, error) {
	if settings.APIKey == "" {
		return nil, fraudflow.NewWorkflowError(fraudflow.ErrCodeValidation,
			fmt.Sprintf("api key required for llm provider %q", settings.Provider))
	}

	var (
		provider = strings.ToLower(settings.Provider)
		cm       model.BaseChatModel
		err      error
	)
	switch provider {
	case ProviderAnthropic, "":
		provider = ProviderAnthropic
		cm, err = newClaude(ctx, settings)
	case ProviderOpenAI:
		cm, err = newOpenAI(ctx, settings)
	default:
		return nil, fraudflow.NewWorkflowError(fraudflow.ErrCodeValidation,
			fmt.Sprintf("unknown llm provider %q", settings.Provider))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s chat model: %w", provider, err)
	}
	return NewChatCompleter(provider, cm), nil
}

// ChatCompleter adapts an eino chat model to fraudflow.Completer
type ChatCompleter struct {
	provider string
	model    model.BaseChatModel
}

// NewChatCompleter wraps cm. provider only labels errors.
func NewChatCompleter(provider string, cm model.BaseChatModel) *ChatCompleter {
	return &ChatCompleter{provider: provider, model: cm}
}

// Provider names the backing provider
func (c *ChatCompleter) Provider() string {
	return c.provider
}

// Complete sends the system prompt and one user turn
func (c *ChatCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	msgs := make([]*schema.Message, 0, 2)
	if system != "" {
		msgs = append(msgs, &schema.Message{
			Role:    schema.System,
			Content: system,
		})
	}
	msgs = append(msgs, &schema.Message{
		Role:    schema.User,
		Content: prompt,
	})

	resp, err := c.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w", c.provider, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", errors.New(c.provider + " returned no text content")
	}
	return resp.Content, nil
}
