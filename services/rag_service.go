package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github/itish2003/docqa/history"
	"github/itish2003/docqa/metrics"
	"github/itish2003/docqa/models"
	"github/itish2003/docqa/vectorstore"
)

// RAGService answers questions over the indexed documents and manages the
// index and conversation state behind them.
type RAGService interface {
	Ask(c context.Context, req models.AskRequest) (*models.AnswerResult, error)
	GetTotalChunks(c context.Context) (int, error)
	// DeleteIndexed removes the chunks indexed by this process.
	DeleteIndexed(c context.Context) (int, error)
	// ResetIndex removes every chunk in the index.
	ResetIndex(c context.Context) error
	ClearSession(c context.Context, sessionID string) error
}

// ragServiceImpl holds the dependencies it needs to do its job
type ragServiceImpl struct {
	store          vectorstore.Store
	history        history.Store
	contextualizer *Contextualizer
	answerer       *Answerer
	logger         *log.Logger
}

func NewRAGService(store vectorstore.Store, hist history.Store, contextualizer *Contextualizer, answerer *Answerer, logger *log.Logger) RAGService {
	if logger == nil {
		logger = log.Default()
	}
	return &ragServiceImpl{
		store:          store,
		history:        hist,
		contextualizer: contextualizer,
		answerer:       answerer,
		logger:         logger,
	}
}

// Ask runs contextualize -> retrieve -> answer. Retrieval and the answer both
// use the standalone question. A missing session id starts a new session.
func (r *ragServiceImpl) Ask(c context.Context, req models.AskRequest) (result *models.AnswerResult, err error) {
	defer func() { metrics.Questions.WithLabelValues(metrics.Status(err)).Inc() }()

	question := strings.TrimSpace(req.Text)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.New().String()
		r.logger.Printf("SERVICE: Started new session %s", sessionID)
	}

	standalone, err := r.contextualizer.Contextualize(c, sessionID, question)
	if err != nil {
		return nil, err
	}
	r.logger.Printf("SERVICE: Standalone question for session %s: %q", sessionID, standalone)

	start := time.Now()
	chunks, err := r.store.Retrieve(c, standalone)
	metrics.ObserveStage("retrieve", start)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	r.logger.Printf("SERVICE: Retrieved %d chunks", len(chunks))

	answer, err := r.answerer.Answer(c, standalone, chunks)
	if err != nil {
		return nil, err
	}

	return &models.AnswerResult{
		Question:           question,
		StandaloneQuestion: standalone,
		Answer:             answer,
		Chunks:             chunks,
		SessionID:          sessionID,
	}, nil
}

// GetTotalChunks counts all the document chunks in the index.
func (r *ragServiceImpl) GetTotalChunks(c context.Context) (int, error) {
	count, err := r.store.Count(c)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

func (r *ragServiceImpl) DeleteIndexed(c context.Context) (int, error) {
	n, err := r.store.DeleteIndexed(c)
	if err != nil {
		return 0, fmt.Errorf("failed to delete indexed chunks: %w", err)
	}
	r.logger.Printf("SERVICE: Deleted %d chunks indexed by this process", n)
	return n, nil
}

func (r *ragServiceImpl) ResetIndex(c context.Context) error {
	if err := r.store.Reset(c); err != nil {
		return fmt.Errorf("failed to reset index: %w", err)
	}
	r.logger.Println("SERVICE: Index reset")
	return nil
}

func (r *ragServiceImpl) ClearSession(c context.Context, sessionID string) error {
	if err := r.history.Clear(c, sessionID); err != nil {
		return fmt.Errorf("failed to clear session %s: %w", sessionID, err)
	}
	return nil
}
