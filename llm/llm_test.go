package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github/itish2003/docqa/config"
)

type stubModel struct {
	resp     *llms.ContentResponse
	err      error
	received []llms.MessageContent
	opts     llms.CallOptions
}

func (s *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.received = messages
	for _, opt := range options {
		opt(&s.opts)
	}
	return s.resp, s.err
}

func (s *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

func TestLangchainModelTrimsFirstChoice(t *testing.T) {
	stub := &stubModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "  Paris \n"}}}}
	model := NewLangchainModel(stub, 0.5)

	out, err := model.Generate(context.Background(), []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, "capital of France?"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris", out)
	assert.Len(t, stub.received, 1)
	assert.InDelta(t, 0.5, stub.opts.Temperature, 1e-9)
}

func TestLangchainModelNoChoices(t *testing.T) {
	model := NewLangchainModel(&stubModel{resp: &llms.ContentResponse{}}, 0)
	_, err := model.Generate(context.Background(), nil)
	assert.Error(t, err)
}

func TestLangchainModelPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	model := NewLangchainModel(&stubModel{err: boom}, 0)
	_, err := model.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestToGeminiContentsSplitsSystemInstruction(t *testing.T) {
	system, contents := toGeminiContents([]llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "be brief"),
		llms.TextParts(llms.ChatMessageTypeHuman, "hi"),
		llms.TextParts(llms.ChatMessageTypeAI, "hello"),
		llms.TextParts(llms.ChatMessageTypeHuman, "what is RAG?"),
	})

	assert.Equal(t, "be brief", system)
	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "what is RAG?", contents[2].Parts[0].Text)
}

func TestNewChatModelRequiresOpenAIKey(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{Provider: config.ProviderOpenAI, Model: "gpt-3.5-turbo-0125"}}
	_, err := NewChatModel(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewChatModelOllama(t *testing.T) {
	cfg := &config.Config{
		LLM:    config.LLMConfig{Provider: config.ProviderOllama, Model: "llama3.1:8b"},
		Ollama: config.OllamaConfig{Host: "http://localhost:11434"},
	}
	model, err := NewChatModel(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, model)
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	cfg := &config.Config{Embeddings: config.EmbeddingsConfig{Provider: "pinecone"}}
	_, err := NewEmbedder(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewEmbedderGeminiRequiresKey(t *testing.T) {
	cfg := &config.Config{Embeddings: config.EmbeddingsConfig{Provider: config.ProviderGemini, Model: "text-embedding-004"}}
	_, err := NewEmbedder(context.Background(), cfg)
	assert.Error(t, err)
}
