package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"github/itish2003/docqa/models"
)

// ChromaBackend stores chunks in a Chroma collection through the v2 HTTP API.
// Embeddings are computed client side and passed in explicitly.
type ChromaBackend struct {
	client     chromago.Client
	collection chromago.Collection
	logger     *log.Logger
}

// NewChromaBackend connects to Chroma at baseURL and gets or creates the named collection.
func NewChromaBackend(ctx context.Context, baseURL, collectionName string, logger *log.Logger) (*ChromaBackend, error) {
	if logger == nil {
		logger = log.Default()
	}

	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("create chroma client: %w", err)
	}

	collection, err := getOrCreateCollection(ctx, client, collectionName, logger)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Printf("Warning: Failed to close chroma client: %v", closeErr)
		}
		return nil, fmt.Errorf("get or create collection %q: %w", collectionName, err)
	}

	return &ChromaBackend{client: client, collection: collection, logger: logger}, nil
}

func getOrCreateCollection(ctx context.Context, client chromago.Client, collectionName string, logger *log.Logger) (chromago.Collection, error) {
	logger.Printf("Getting or creating collection '%s'...", collectionName)

	collection, err := client.GetOrCreateCollection(
		ctx,
		collectionName,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "PDF question answering chunks"),
				chromago.NewStringAttribute("created_by", "docqa"),
			),
		),
	)
	if err != nil {
		return nil, err
	}

	logger.Printf("Successfully got/created collection '%s'", collectionName)
	return collection, nil
}

// Close releases the client.
func (c *ChromaBackend) Close() error {
	return c.client.Close()
}

func (c *ChromaBackend) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]chromago.DocumentID, len(records))
	texts := make([]string, len(records))
	vectors := make([]embeddings.Embedding, len(records))
	metadatas := make([]chromago.DocumentMetadata, len(records))
	for i, r := range records {
		ids[i] = chromago.DocumentID(r.ID)
		texts[i] = r.Chunk.Text
		vectors[i] = embeddings.NewEmbeddingFromFloat32(r.Vector)
		metadatas[i] = chromago.NewDocumentMetadata(
			chromago.NewStringAttribute(models.MetaSource, r.Chunk.Source),
			chromago.NewIntAttribute(models.MetaPage, int64(r.Chunk.Page)),
		)
	}

	err := c.collection.Add(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(vectors...),
		chromago.WithMetadatas(metadatas...),
	)
	if err != nil {
		return fmt.Errorf("failed to add %d chunks to chromadb: %w", len(records), err)
	}
	return nil
}

func (c *ChromaBackend) Nearest(ctx context.Context, vector []float32, n int) ([]Record, error) {
	results, err := c.collection.Query(
		ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chromago.WithNResults(n),
		chromago.WithIncludeQuery(chromago.IncludeDocuments, chromago.IncludeMetadatas, chromago.IncludeEmbeddings),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	idGroups := results.GetIDGroups()
	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	embeddingGroups := results.GetEmbeddingsGroups()

	if len(documentGroups) == 0 {
		return []Record{}, nil
	}

	records := make([]Record, 0, len(documentGroups[0]))
	for i, doc := range documentGroups[0] {
		if doc == nil || doc.ContentString() == "" {
			continue
		}

		var record Record
		if len(idGroups) > 0 && i < len(idGroups[0]) {
			record.ID = string(idGroups[0][i])
		}

		var meta map[string]interface{}
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) {
			meta = metadataToMap(metadataGroups[0][i], c.logger)
		}
		record.Chunk = chunkFromMetadata(doc.ContentString(), meta)
		record.Chunk.ID = record.ID

		if len(embeddingGroups) > 0 && i < len(embeddingGroups[0]) && embeddingGroups[0][i] != nil {
			record.Vector = embeddingGroups[0][i].ContentAsFloat32()
		}
		records = append(records, record)
	}
	return records, nil
}

func (c *ChromaBackend) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	docIDs := make([]chromago.DocumentID, len(ids))
	for i, id := range ids {
		docIDs[i] = chromago.DocumentID(id)
	}
	if err := c.collection.Delete(ctx, chromago.WithIDsDelete(docIDs...)); err != nil {
		return fmt.Errorf("failed to delete chunks from chromadb: %w", err)
	}
	return nil
}

func (c *ChromaBackend) Count(ctx context.Context) (int, error) {
	count, err := c.collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection: %w", err)
	}
	return int(count), nil
}

func (c *ChromaBackend) Clear(ctx context.Context) error {
	results, err := c.collection.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get documents from chromadb: %w", err)
	}
	ids := results.GetIDs()
	if len(ids) == 0 {
		return nil
	}
	if err := c.collection.Delete(ctx, chromago.WithIDsDelete(ids...)); err != nil {
		return fmt.Errorf("failed to clear chromadb collection: %w", err)
	}
	c.logger.Printf("Deleted %d chunks from chroma collection.", len(ids))
	return nil
}

// metadataToMap converts chroma document metadata to a plain map. The metadata
// type has no public accessor for all values, so it goes through JSON.
func metadataToMap(metadata chromago.DocumentMetadata, logger *log.Logger) map[string]interface{} {
	metadataMap := make(map[string]interface{})
	if metadata == nil {
		return metadataMap
	}
	jsonBytes, err := json.Marshal(metadata)
	if err != nil {
		logger.Printf("WARN: could not marshal metadata for document: %v", err)
		return metadataMap
	}
	if err := json.Unmarshal(jsonBytes, &metadataMap); err != nil {
		logger.Printf("WARN: could not unmarshal metadata for document: %v", err)
		return make(map[string]interface{})
	}
	return metadataMap
}

// chunkFromMetadata rebuilds a chunk from stored text and decoded metadata.
func chunkFromMetadata(text string, meta map[string]interface{}) models.Chunk {
	chunk := models.Chunk{Text: text, Metadata: meta}
	if source, ok := meta[models.MetaSource].(string); ok {
		chunk.Source = source
	}
	chunk.Page = pageFromValue(meta[models.MetaPage])
	return chunk
}

func pageFromValue(v interface{}) int {
	switch p := v.(type) {
	case int:
		return p
	case int64:
		return int(p)
	case float64:
		return int(p)
	case json.Number:
		n, err := p.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}

var _ Backend = (*ChromaBackend)(nil)
