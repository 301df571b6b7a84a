package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

type langchainModel struct {
	model       llms.Model
	temperature float64
}

// NewLangchainModel adapts any langchaingo model (openai, ollama, ...) to ChatModel.
func NewLangchainModel(model llms.Model, temperature float64) ChatModel {
	return &langchainModel{model: model, temperature: temperature}
}

func (m *langchainModel) Generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	resp, err := m.model.GenerateContent(ctx, messages, llms.WithTemperature(m.temperature))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
