package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"github/itish2003/docqa/metrics"
	"github/itish2003/docqa/models"
	"github/itish2003/docqa/vectorstore"
)

// IngestionService turns uploaded or on-disk documents into indexed chunks.
type IngestionService interface {
	// IngestFiles stages the uploads in a fresh batch directory, indexes every
	// chunk they produce and removes the batch, whether or not indexing succeeded.
	IngestFiles(ctx context.Context, files []models.UploadedFile) ([]string, error)
	// IngestPaths indexes files already on disk. The files are left in place.
	IngestPaths(ctx context.Context, paths []string) ([]string, error)
}

type ingestionServiceImpl struct {
	store    vectorstore.Store
	loader   *DocumentLoader
	staging  *Staging
	splitter textsplitter.TextSplitter
	logger   *log.Logger
}

// NewIngestionService wires the loader, splitter and index together.
func NewIngestionService(store vectorstore.Store, loader *DocumentLoader, staging *Staging, chunkSize, chunkOverlap int, logger *log.Logger) IngestionService {
	if logger == nil {
		logger = log.Default()
	}
	return &ingestionServiceImpl{
		store:   store,
		loader:  loader,
		staging: staging,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		logger: logger,
	}
}

func (s *ingestionServiceImpl) IngestFiles(ctx context.Context, files []models.UploadedFile) (ids []string, err error) {
	defer func() { metrics.IngestRequests.WithLabelValues(metrics.Status(err)).Inc() }()

	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	for _, f := range files {
		if !IsSupportedFile(f.Name) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, f.Name)
		}
	}

	batch, err := s.staging.NewBatch()
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := s.staging.Remove(batch); rmErr != nil {
			s.logger.Printf("INDEXER WARN: Could not remove staging batch %s: %v", batch, rmErr)
		}
	}()

	for _, f := range files {
		if _, err := s.staging.Write(batch, f.Name, f.Content); err != nil {
			return nil, err
		}
	}
	s.logger.Printf("INDEXER: Staged %d files in %s", len(files), batch)

	start := time.Now()
	docs, err := s.loader.LoadDirectory(ctx, batch)
	metrics.ObserveStage("load", start)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	metrics.FilesIngested.Add(float64(len(files)))

	return s.indexDocuments(ctx, docs)
}

func (s *ingestionServiceImpl) IngestPaths(ctx context.Context, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	start := time.Now()
	var docs []schema.Document
	for _, path := range paths {
		if !IsSupportedFile(path) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
		}
		fileDocs, err := s.loader.LoadFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to load documents: %w", err)
		}
		docs = append(docs, fileDocs...)
	}
	metrics.ObserveStage("load", start)
	metrics.FilesIngested.Add(float64(len(paths)))

	return s.indexDocuments(ctx, docs)
}

// indexDocuments splits docs and submits every chunk in a single Index call.
func (s *ingestionServiceImpl) indexDocuments(ctx context.Context, docs []schema.Document) ([]string, error) {
	start := time.Now()
	split, err := textsplitter.SplitDocuments(s.splitter, docs)
	metrics.ObserveStage("split", start)
	if err != nil {
		return nil, fmt.Errorf("failed to split documents: %w", err)
	}

	chunks := make([]models.Chunk, 0, len(split))
	for _, d := range split {
		if d.PageContent == "" {
			continue
		}
		chunks = append(chunks, chunkFromDocument(d))
	}
	if len(chunks) == 0 {
		s.logger.Println("INDEXER: Documents contained no text, nothing to index.")
		return nil, nil
	}

	start = time.Now()
	ids, err := s.store.Index(ctx, chunks)
	metrics.ObserveStage("index", start)
	if err != nil {
		return nil, fmt.Errorf("failed to index chunks: %w", err)
	}
	metrics.ChunksIndexed.Add(float64(len(ids)))
	s.logger.Printf("INDEXER: Indexed %d chunks from %d pages", len(ids), len(docs))
	return ids, nil
}

func chunkFromDocument(d schema.Document) models.Chunk {
	source, _ := d.Metadata[models.MetaSource].(string)
	metadata := make(map[string]interface{}, len(d.Metadata))
	for k, v := range d.Metadata {
		metadata[k] = v
	}
	return models.Chunk{
		Text:     d.PageContent,
		Source:   source,
		Page:     pageOf(d.Metadata),
		Metadata: metadata,
	}
}
