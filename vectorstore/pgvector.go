package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgvectorBackend stores chunks in a Postgres table with a pgvector column.
// The table is named after the index: <index>_chunks.
type PgvectorBackend struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	return pool, nil
}

// NewPgvectorBackend ensures the schema exists and returns the backend.
func NewPgvectorBackend(ctx context.Context, pool *pgxpool.Pool, indexName string, dimension int) (*PgvectorBackend, error) {
	if err := EnsureSchema(ctx, pool, indexName, dimension); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PgvectorBackend{pool: pool, table: tableName(indexName)}, nil
}

func tableName(indexName string) string {
	return pgx.Identifier{indexName + "_chunks"}.Sanitize()
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, indexName string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}
	if indexName == "" {
		return fmt.Errorf("index name is empty")
	}
	if pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	table := tableName(indexName)
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			page INT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, table, dimension),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(source)",
			pgx.Identifier{indexName + "_chunks_source"}.Sanitize(), table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)",
			pgx.Identifier{indexName + "_chunks_embedding"}.Sanitize(), table),
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *PgvectorBackend) Add(ctx context.Context, records []Record) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	batch := &pgx.Batch{}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, source, page, content, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, NOW())
	`, s.table)
	for _, r := range records {
		meta, marshalErr := json.Marshal(r.Chunk.Metadata)
		if marshalErr != nil || r.Chunk.Metadata == nil {
			meta = []byte("{}")
		}
		batch.Queue(query, r.ID, r.Chunk.Source, r.Chunk.Page, r.Chunk.Text, string(meta), pgvector.NewVector(r.Vector))
	}

	results := tx.SendBatch(ctx, batch)
	for i := range records {
		if _, execErr := results.Exec(); execErr != nil {
			_ = results.Close()
			err = fmt.Errorf("insert chunk %d: %w", i, execErr)
			return err
		}
	}
	if err = results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PgvectorBackend) Nearest(ctx context.Context, vector []float32, n int) ([]Record, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}
	if n <= 0 {
		n = 5
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, source, page, content, metadata, embedding
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, s.table), pgvector.NewVector(vector), n)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, n)
	for rows.Next() {
		var (
			r    Record
			meta []byte
			vec  pgvector.Vector
		)
		if scanErr := rows.Scan(&r.ID, &r.Chunk.Source, &r.Chunk.Page, &r.Chunk.Text, &meta, &vec); scanErr != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", scanErr)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &r.Chunk.Metadata)
		}
		r.Chunk.ID = r.ID
		r.Vector = vec.Slice()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *PgvectorBackend) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", s.table), ids); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func (s *PgvectorBackend) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

func (s *PgvectorBackend) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", s.table)); err != nil {
		return fmt.Errorf("truncate chunks: %w", err)
	}
	return nil
}

var _ Backend = (*PgvectorBackend)(nil)
