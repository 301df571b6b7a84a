package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/docqa/config"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Index:      config.IndexConfig{Name: "test", Backend: config.BackendMemory},
		Staging:    config.StagingConfig{Folder: filepath.Join(t.TempDir(), "staging")},
		LLM:        config.LLMConfig{Provider: config.ProviderOllama, Model: "llama3"},
		Embeddings: config.EmbeddingsConfig{Provider: config.ProviderOllama, Model: "nomic-embed-text"},
		Ollama:     config.OllamaConfig{Host: "http://localhost:11434"},
		History:    config.HistoryConfig{Backend: config.HistoryMemory},
		PDF:        config.PDFConfig{Engine: config.PDFEngineLedongthuc},
		Splitter:   config.SplitterConfig{ChunkSize: 500},
	}
}

func TestNewAppWithLocalBackends(t *testing.T) {
	cfg := localConfig(t)
	require.NoError(t, cfg.Validate())

	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.rag)
	assert.NotNil(t, app.ingestion)
	assert.DirExists(t, cfg.Staging.Folder)

	total, err := app.rag.GetTotalChunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestNewAppRejectsUnknownBackends(t *testing.T) {
	cfg := localConfig(t)
	cfg.Index.Backend = "faiss"
	_, err := NewApp(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown vector backend")

	cfg = localConfig(t)
	cfg.History.Backend = "sqlite"
	_, err = NewApp(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown history backend")
}
