package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"
)

type geminiModel struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiModel returns a ChatModel backed by the Gemini API. System messages
// become the system instruction; human and AI turns map to user and model roles.
func NewGeminiModel(client *genai.Client, model string, temperature float64) ChatModel {
	return &geminiModel{client: client, model: model, temperature: float32(temperature)}
}

func (m *geminiModel) Generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	system, contents := toGeminiContents(messages)

	temperature := m.temperature
	cfg := &genai.GenerateContentConfig{Temperature: &temperature}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	result, err := m.client.Models.GenerateContent(ctx, m.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini api call failed: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var responseText strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		if p != nil && p.Text != "" {
			responseText.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(responseText.String()), nil
}

func toGeminiContents(messages []llms.MessageContent) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		text := textOf(msg)
		switch msg.Role {
		case llms.ChatMessageTypeSystem:
			system = append(system, text)
		case llms.ChatMessageTypeAI:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: text}}})
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func textOf(msg llms.MessageContent) string {
	var sb strings.Builder
	for _, part := range msg.Parts {
		if tc, ok := part.(llms.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

// GeminiEmbedder implements langchaingo's embeddings.Embedder on the Gemini
// embedding endpoint.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model}
}

// geminiEmbedBatchSize is the most requests the API accepts in one
// batchEmbedContents call.
const geminiEmbedBatchSize = 100

// EmbedDocuments embeds texts in batches of at most geminiEmbedBatchSize,
// returning the vectors in input order.
func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiEmbedBatchSize {
		end := min(start+geminiEmbedBatchSize, len(texts))
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *GeminiEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed content: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embedding count mismatch: have %d texts, %d embeddings", len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
