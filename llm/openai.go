package llm

import (
	"context"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

func newOpenAI(ctx context.Context, settings Settings) (model.BaseChatModel, error) {
	if settings.Model == "" {
		settings.Model = DefaultOpenAIModel
	}

	var temperature float32
	tokens := maxTokens
	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      settings.APIKey,
		BaseURL:     settings.BaseURL,
		Model:       settings.Model,
		MaxTokens:   &tokens,
		Temperature: &temperature,
	})
}
