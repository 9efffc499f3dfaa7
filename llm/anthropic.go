package llm

import (
	"context"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"
)

func newClaude(ctx context.Context, settings Settings) (model.BaseChatModel, error) {
	if settings.Model == "" {
		settings.Model = DefaultAnthropicModel
	}

	var temperature float32
	cfg := &claude.Config{
		APIKey:      settings.APIKey,
		Model:       settings.Model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}
	if settings.BaseURL != "" {
		cfg.BaseURL = &settings.BaseURL
	}
	return claude.NewChatModel(ctx, cfg)
}
