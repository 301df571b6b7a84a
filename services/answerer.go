package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"github/itish2003/docqa/llm"
	"github/itish2003/docqa/metrics"
	"github/itish2003/docqa/models"
)

// Answerer fills the QA prompt with retrieved chunks and asks the model once.
type Answerer struct {
	model  llm.ChatModel
	prompt prompts.PromptTemplate
}

func NewAnswerer(model llm.ChatModel) *Answerer {
	return &Answerer{model: model, prompt: NewQAPrompt()}
}

func (a *Answerer) Answer(ctx context.Context, question string, chunks []models.Chunk) (string, error) {
	defer metrics.ObserveStage("answer", time.Now())

	system, err := a.prompt.Format(map[string]any{"context": JoinChunks(chunks)})
	if err != nil {
		return "", fmt.Errorf("format qa prompt: %w", err)
	}

	answer, err := a.model.Generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, question),
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}

// JoinChunks concatenates chunk text separated by blank lines.
func JoinChunks(chunks []models.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, "\n\n")
}
