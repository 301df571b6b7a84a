package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github/itish2003/docqa/history"
	"github/itish2003/docqa/models"
)

func newTestRAG(model *scriptedModel, store *recordingStore, hist history.Store) RAGService {
	return NewRAGService(store, hist, NewContextualizer(model, hist), NewAnswerer(model), quietLogger())
}

func textOf(m llms.MessageContent) string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(llms.TextContent); ok {
			out += tp.Text
		}
	}
	return out
}

func TestAskRetrievesOnStandaloneQuestion(t *testing.T) {
	model := &scriptedModel{replies: []string{"What do cats eat?", "Cats eat fish."}}
	store := &recordingStore{results: []models.Chunk{
		{Text: "Cats eat fish and mice.", Source: "cats.pdf", Page: 2},
		{Text: "Cats sleep a lot.", Source: "cats.pdf", Page: 5},
	}}
	hist := history.NewMemoryStore()
	svc := newTestRAG(model, store, hist)

	result, err := svc.Ask(context.Background(), models.AskRequest{Text: "and what do they eat?", SessionID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"What do cats eat?"}, store.queries)
	assert.Equal(t, "Cats eat fish.", result.Answer)
	assert.Equal(t, "What do cats eat?", result.StandaloneQuestion)
	assert.Equal(t, "s1", result.SessionID)

	resp := result.Response()
	assert.Equal(t, []string{"cats.pdf", "cats.pdf"}, resp.Docs)
	assert.Equal(t, []int{2, 5}, resp.Pages)

	require.Len(t, model.calls, 2)
	answerCall := model.calls[1]
	require.Len(t, answerCall, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, answerCall[0].Role)
	assert.Contains(t, textOf(answerCall[0]), "Cats eat fish and mice.\n\nCats sleep a lot.")
	assert.Contains(t, textOf(answerCall[0]), "just say that you don't know")
	assert.Equal(t, "What do cats eat?", textOf(answerCall[1]))
}

func TestAskRecordsExchangeInHistory(t *testing.T) {
	model := &scriptedModel{replies: []string{"Q1", "A1", "Q2", "A2"}}
	hist := history.NewMemoryStore()
	svc := newTestRAG(model, &recordingStore{}, hist)
	ctx := context.Background()

	_, err := svc.Ask(ctx, models.AskRequest{Text: "first", SessionID: "s"})
	require.NoError(t, err)

	msgs, err := hist.Messages(ctx, "s")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[0].GetType())
	assert.Equal(t, "first", msgs[0].GetContent())
	assert.Equal(t, llms.ChatMessageTypeAI, msgs[1].GetType())
	assert.Equal(t, "Q1", msgs[1].GetContent())

	_, err = svc.Ask(ctx, models.AskRequest{Text: "second", SessionID: "s"})
	require.NoError(t, err)

	// system + two history turns + the new question
	contextualizeCall := model.calls[2]
	require.Len(t, contextualizeCall, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, contextualizeCall[0].Role)
	assert.Equal(t, "first", textOf(contextualizeCall[1]))
	assert.Equal(t, llms.ChatMessageTypeAI, contextualizeCall[2].Role)
	assert.Equal(t, "second", textOf(contextualizeCall[3]))
}

func TestAskSessionsAreIsolated(t *testing.T) {
	model := &scriptedModel{replies: []string{"Q1", "A1", "Q2", "A2"}}
	hist := history.NewMemoryStore()
	svc := newTestRAG(model, &recordingStore{}, hist)

	_, err := svc.Ask(context.Background(), models.AskRequest{Text: "one", SessionID: "a"})
	require.NoError(t, err)
	_, err = svc.Ask(context.Background(), models.AskRequest{Text: "two", SessionID: "b"})
	require.NoError(t, err)

	assert.Len(t, model.calls[2], 2, "session b starts without history")
}

func TestAskEmptyIndexStillAnswers(t *testing.T) {
	model := &scriptedModel{replies: []string{"What is X?", "I don't know."}}
	svc := newTestRAG(model, &recordingStore{}, history.NewMemoryStore())

	result, err := svc.Ask(context.Background(), models.AskRequest{Text: "What is X?"})
	require.NoError(t, err)
	assert.Equal(t, "I don't know.", result.Answer)
	assert.NotEmpty(t, result.SessionID)

	resp := result.Response()
	assert.Empty(t, resp.Docs)
	assert.Empty(t, resp.Pages)
	require.Len(t, model.calls, 2)
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	model := &scriptedModel{}
	svc := newTestRAG(model, &recordingStore{}, history.NewMemoryStore())

	_, err := svc.Ask(context.Background(), models.AskRequest{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Empty(t, model.calls)
}

func TestAskPropagatesModelError(t *testing.T) {
	model := &scriptedModel{err: errors.New("rate limited")}
	store := &recordingStore{}
	svc := newTestRAG(model, store, history.NewMemoryStore())

	_, err := svc.Ask(context.Background(), models.AskRequest{Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Empty(t, store.queries)
}

func TestContextualizeFallsBackToQuestionOnEmptyRewrite(t *testing.T) {
	model := &scriptedModel{replies: []string{""}}
	c := NewContextualizer(model, history.NewMemoryStore())

	got, err := c.Contextualize(context.Background(), "s", "raw question")
	require.NoError(t, err)
	assert.Equal(t, "raw question", got)
}

func TestIndexManagement(t *testing.T) {
	store := &recordingStore{}
	hist := history.NewMemoryStore()
	svc := newTestRAG(&scriptedModel{}, store, hist)
	ctx := context.Background()

	n, err := svc.DeleteIndexed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, svc.ResetIndex(ctx))
	assert.Equal(t, 1, store.resets)

	total, err := svc.GetTotalChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	require.NoError(t, hist.Append(ctx, "s", llms.HumanChatMessage{Content: "x"}))
	require.NoError(t, svc.ClearSession(ctx, "s"))
	msgs, err := hist.Messages(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestJoinChunks(t *testing.T) {
	assert.Equal(t, "", JoinChunks(nil))
	assert.Equal(t, "a\n\nb", JoinChunks([]models.Chunk{{Text: "a"}, {Text: "b"}}))
}

func TestQAPromptFormatsContext(t *testing.T) {
	got, err := NewQAPrompt().Format(map[string]any{"context": "chunk one\n\nchunk two"})
	require.NoError(t, err)
	assert.Equal(t, "You are an assistant for question-answering tasks. "+
		"Use the following pieces of retrieved context to answer the question. "+
		"If you don't know the answer, just say that you don't know.\n\n"+
		"chunk one\n\nchunk two", got)
}
