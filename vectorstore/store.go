package vectorstore

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"

	"github/itish2003/docqa/models"
)

// Store is the vector index adapter used by ingestion and question answering.
type Store interface {
	// Index embeds and stores chunks, returning the ids assigned to them in order.
	Index(ctx context.Context, chunks []models.Chunk) ([]string, error)
	// Retrieve returns the chunks most relevant to query, diversified by MMR.
	Retrieve(ctx context.Context, query string) ([]models.Chunk, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
	// DeleteIndexed removes every chunk this process has indexed.
	DeleteIndexed(ctx context.Context) (int, error)
	// Reset removes every chunk from the index, whoever added it.
	Reset(ctx context.Context) error
}

// Record is a chunk as persisted by a Backend.
type Record struct {
	ID     string
	Chunk  models.Chunk
	Vector []float32
}

// Backend is the storage half of the adapter: it persists records and answers
// nearest-neighbour queries. Nearest may omit vectors; the index re-embeds the
// candidates in that case.
type Backend interface {
	Add(ctx context.Context, records []Record) error
	Nearest(ctx context.Context, vector []float32, n int) ([]Record, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// Options tunes retrieval. K and FetchK fall back to the LangChain defaults
// (4 and 20) when not positive. Lambda outside [0, 1] falls back to 0.5; a
// Lambda of 0 is kept and selects for maximum diversity.
type Options struct {
	K      int
	FetchK int
	Lambda float64
	Logger *log.Logger
}

// VectorIndex implements Store on top of an embedder and a Backend.
type VectorIndex struct {
	embedder embeddings.Embedder
	backend  Backend
	registry *IDRegistry
	k        int
	fetchK   int
	lambda   float64
	logger   *log.Logger
}

func NewVectorIndex(embedder embeddings.Embedder, backend Backend, opts Options) *VectorIndex {
	if opts.K <= 0 {
		opts.K = 4
	}
	if opts.FetchK <= 0 {
		opts.FetchK = 20
	}
	if opts.FetchK < opts.K {
		opts.FetchK = opts.K
	}
	if opts.Lambda < 0 || opts.Lambda > 1 {
		opts.Lambda = 0.5
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &VectorIndex{
		embedder: embedder,
		backend:  backend,
		registry: NewIDRegistry(),
		k:        opts.K,
		fetchK:   opts.FetchK,
		lambda:   opts.Lambda,
		logger:   opts.Logger,
	}
}

// Registry exposes the ids indexed by this process.
func (v *VectorIndex) Registry() *IDRegistry {
	return v.registry
}

func (v *VectorIndex) Index(ctx context.Context, chunks []models.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return []string{}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := v.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(vectors))
	}

	records := make([]Record, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = uuid.New().String()
		c.ID = ids[i]
		records[i] = Record{ID: ids[i], Chunk: c, Vector: vectors[i]}
	}

	if err := v.backend.Add(ctx, records); err != nil {
		return nil, fmt.Errorf("add chunks to index: %w", err)
	}
	v.registry.Add(ids...)
	v.logger.Printf("INDEXER: Added %d chunks to the index.", len(ids))
	return ids, nil
}

func (v *VectorIndex) Retrieve(ctx context.Context, query string) ([]models.Chunk, error) {
	queryVector, err := v.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := v.backend.Nearest(ctx, queryVector, v.fetchK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	if len(candidates) == 0 {
		return []models.Chunk{}, nil
	}

	if err := v.fillVectors(ctx, candidates); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(candidates))
	for i, c := range candidates {
		vectors[i] = c.Vector
	}
	picked := MaxMarginalRelevance(queryVector, vectors, v.lambda, v.k)

	chunks := make([]models.Chunk, 0, len(picked))
	for _, idx := range picked {
		chunk := candidates[idx].Chunk
		chunk.ID = candidates[idx].ID
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func (v *VectorIndex) fillVectors(ctx context.Context, records []Record) error {
	var missing []int
	for i, r := range records {
		if len(r.Vector) == 0 {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	texts := make([]string, len(missing))
	for i, idx := range missing {
		texts[i] = records[idx].Chunk.Text
	}
	vectors, err := v.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed candidates: %w", err)
	}
	if len(vectors) != len(missing) {
		return fmt.Errorf("embedding count mismatch: have %d candidates, %d embeddings", len(missing), len(vectors))
	}
	for i, idx := range missing {
		records[idx].Vector = vectors[i]
	}
	return nil
}

func (v *VectorIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := v.backend.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	v.registry.Remove(ids...)
	return nil
}

func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	count, err := v.backend.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

func (v *VectorIndex) DeleteIndexed(ctx context.Context) (int, error) {
	ids := v.registry.Snapshot()
	if err := v.Delete(ctx, ids); err != nil {
		return 0, err
	}
	v.logger.Printf("INDEXER: Deleted %d chunks indexed by this process.", len(ids))
	return len(ids), nil
}

func (v *VectorIndex) Reset(ctx context.Context) error {
	if err := v.backend.Clear(ctx); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	v.registry.Clear()
	v.logger.Println("INDEXER: Index cleared.")
	return nil
}

// IDRegistry records the ids indexed by this process so they can be cleaned
// up later. It is safe for concurrent use.
type IDRegistry struct {
	mu  sync.Mutex
	ids []string
}

func NewIDRegistry() *IDRegistry {
	return &IDRegistry{}
}

func (r *IDRegistry) Add(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids...)
}

func (r *IDRegistry) Remove(ids ...string) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.ids[:0]
	for _, id := range r.ids {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	r.ids = kept
}

// Snapshot returns a copy of the recorded ids.
func (r *IDRegistry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func (r *IDRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func (r *IDRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = nil
}

var _ Store = (*VectorIndex)(nil)
