package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github/itish2003/docqa/history"
	"github/itish2003/docqa/llm"
	"github/itish2003/docqa/metrics"
)

// Contextualizer rewrites a follow-up question into a standalone one using the
// session's chat history, then records the exchange in that history.
type Contextualizer struct {
	model   llm.ChatModel
	history history.Store
}

func NewContextualizer(model llm.ChatModel, store history.Store) *Contextualizer {
	return &Contextualizer{model: model, history: store}
}

func (c *Contextualizer) Contextualize(ctx context.Context, sessionID, question string) (string, error) {
	defer metrics.ObserveStage("contextualize", time.Now())

	turns, err := c.history.Messages(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load chat history: %w", err)
	}

	messages := make([]llms.MessageContent, 0, len(turns)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, ContextualizeSystemPrompt))
	for _, turn := range turns {
		messages = append(messages, llms.TextParts(turn.GetType(), turn.GetContent()))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, question))

	standalone, err := c.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("contextualize question: %w", err)
	}
	if standalone == "" {
		standalone = question
	}

	if err := c.history.Append(ctx, sessionID,
		llms.HumanChatMessage{Content: question},
		llms.AIChatMessage{Content: standalone},
	); err != nil {
		return "", fmt.Errorf("save chat history: %w", err)
	}
	return standalone, nil
}
