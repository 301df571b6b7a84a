package services

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github/itish2003/docqa/models"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// scriptedModel returns its replies in order and records every call.
type scriptedModel struct {
	replies []string
	err     error
	calls   [][]llms.MessageContent
}

func (m *scriptedModel) Generate(_ context.Context, messages []llms.MessageContent) (string, error) {
	m.calls = append(m.calls, messages)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", errors.New("scriptedModel: no replies left")
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

// recordingStore is an in-memory vectorstore.Store that records what it is asked.
type recordingStore struct {
	mu         sync.Mutex
	indexCalls [][]models.Chunk
	queries    []string
	results    []models.Chunk
	indexErr   error
	deleted    int
	resets     int
}

func (s *recordingStore) Index(_ context.Context, chunks []models.Chunk) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexCalls = append(s.indexCalls, chunks)
	if s.indexErr != nil {
		return nil, s.indexErr
	}
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = chunks[i].Source + "#" + string(rune('a'+i%26))
	}
	return ids, nil
}

func (s *recordingStore) Retrieve(_ context.Context, query string) ([]models.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return s.results, nil
}

func (s *recordingStore) Delete(context.Context, []string) error { return nil }

func (s *recordingStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, call := range s.indexCalls {
		n += len(call)
	}
	return n, nil
}

func (s *recordingStore) DeleteIndexed(context.Context) (int, error) {
	s.deleted++
	return 3, nil
}

func (s *recordingStore) Reset(context.Context) error {
	s.resets++
	return nil
}

func (s *recordingStore) indexedChunks() []models.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.Chunk
	for _, call := range s.indexCalls {
		all = append(all, call...)
	}
	return all
}

// recordingIngestion records the paths handed to IngestPaths.
type recordingIngestion struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (r *recordingIngestion) IngestFiles(context.Context, []models.UploadedFile) ([]string, error) {
	return nil, errors.New("not implemented")
}

func (r *recordingIngestion) IngestPaths(_ context.Context, paths []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, paths...)
	if r.err != nil {
		return nil, r.err
	}
	return []string{"id"}, nil
}

func (r *recordingIngestion) ingested() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}
