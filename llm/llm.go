package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/genai"

	"github/itish2003/docqa/config"
)

// ChatModel is the single language model operation the pipeline needs: send an
// ordered list of messages, get text back.
type ChatModel interface {
	Generate(ctx context.Context, messages []llms.MessageContent) (string, error)
}

// NewChatModel builds the chat model selected by cfg.LLM.Provider.
func NewChatModel(ctx context.Context, cfg *config.Config) (ChatModel, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAI.APIKey),
			openai.WithModel(cfg.LLM.Model),
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai chat model: %w", err)
		}
		return NewLangchainModel(model, cfg.LLM.Temperature), nil
	case config.ProviderOllama:
		model, err := ollama.New(ollama.WithModel(cfg.LLM.Model), ollama.WithServerURL(cfg.Ollama.Host))
		if err != nil {
			return nil, fmt.Errorf("create ollama chat model: %w", err)
		}
		return NewLangchainModel(model, cfg.LLM.Temperature), nil
	case config.ProviderGemini:
		client, err := newGeminiClient(ctx, cfg.Gemini.APIKey)
		if err != nil {
			return nil, err
		}
		return NewGeminiModel(client, cfg.LLM.Model, cfg.LLM.Temperature), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
}

// NewEmbedder builds the embedder selected by cfg.Embeddings.Provider.
func NewEmbedder(ctx context.Context, cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.Embeddings.Provider {
	case config.ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAI.APIKey),
			openai.WithEmbeddingModel(cfg.Embeddings.Model),
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai embeddings client: %w", err)
		}
		return newEmbedder(client)
	case config.ProviderOllama:
		client, err := ollama.New(ollama.WithModel(cfg.Embeddings.Model), ollama.WithServerURL(cfg.Ollama.Host))
		if err != nil {
			return nil, fmt.Errorf("create ollama embeddings client: %w", err)
		}
		return newEmbedder(client)
	case config.ProviderGemini:
		client, err := newGeminiClient(ctx, cfg.Gemini.APIKey)
		if err != nil {
			return nil, err
		}
		return NewGeminiEmbedder(client, cfg.Embeddings.Model), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embeddings.Provider)
	}
}

func newEmbedder(client embeddings.EmbedderClient) (embeddings.Embedder, error) {
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return embedder, nil
}

func newGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini provider selected but GEMINI_API_KEY not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return client, nil
}
