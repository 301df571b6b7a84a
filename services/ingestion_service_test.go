package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/docqa/models"
)

func newTestIngestion(t *testing.T, store *recordingStore) (IngestionService, *Staging) {
	t.Helper()
	staging, err := NewStaging(t.TempDir())
	require.NoError(t, err)
	loader, err := NewDocumentLoader("", "")
	require.NoError(t, err)
	return NewIngestionService(store, loader, staging, 500, 0, quietLogger()), staging
}

func paragraph(word string) string {
	return strings.TrimSpace(strings.Repeat(word+" ", 60))
}

func assertStagingEmpty(t *testing.T, staging *Staging) {
	t.Helper()
	entries, err := os.ReadDir(staging.Root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIngestFilesSubmitsEveryChunkOnceAndCleansStaging(t *testing.T) {
	store := &recordingStore{}
	svc, staging := newTestIngestion(t, store)

	long := strings.Join([]string{paragraph("alpha"), paragraph("beta"), paragraph("gamma")}, "\n\n")
	ids, err := svc.IngestFiles(context.Background(), []models.UploadedFile{
		{Name: "short.txt", Content: strings.NewReader("a short note about cats")},
		{Name: "long.md", Content: strings.NewReader(long)},
	})
	require.NoError(t, err)

	require.Len(t, store.indexCalls, 1, "all chunks go in one Index call")
	chunks := store.indexCalls[0]
	assert.Len(t, chunks, 4)
	assert.Len(t, ids, 4)

	// Files are loaded in name order.
	assert.Equal(t, "long.md", chunks[0].Source)
	assert.Equal(t, paragraph("alpha"), chunks[0].Text)
	assert.Equal(t, paragraph("gamma"), chunks[2].Text)
	assert.Equal(t, "short.txt", chunks[3].Source)
	for _, c := range chunks {
		assert.Equal(t, 1, c.Page)
		assert.LessOrEqual(t, len(c.Text), 500)
	}

	assertStagingEmpty(t, staging)
}

func TestIngestFilesCleansStagingOnFailure(t *testing.T) {
	store := &recordingStore{indexErr: errors.New("index unavailable")}
	svc, staging := newTestIngestion(t, store)

	_, err := svc.IngestFiles(context.Background(), []models.UploadedFile{
		{Name: "a.txt", Content: strings.NewReader("some text")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index unavailable")

	assertStagingEmpty(t, staging)
}

func TestIngestFilesRejectsEmptyAndUnsupported(t *testing.T) {
	store := &recordingStore{}
	svc, staging := newTestIngestion(t, store)

	_, err := svc.IngestFiles(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = svc.IngestFiles(context.Background(), []models.UploadedFile{
		{Name: "a.txt", Content: strings.NewReader("x")},
		{Name: "b.exe", Content: strings.NewReader("x")},
	})
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	assert.Empty(t, store.indexCalls)
	assertStagingEmpty(t, staging)
}

func TestIngestFilesTwiceAddsDuplicates(t *testing.T) {
	store := &recordingStore{}
	svc, _ := newTestIngestion(t, store)

	for i := 0; i < 2; i++ {
		_, err := svc.IngestFiles(context.Background(), []models.UploadedFile{
			{Name: "same.txt", Content: strings.NewReader("identical content")},
		})
		require.NoError(t, err)
	}

	chunks := store.indexedChunks()
	require.Len(t, chunks, 2)
	assert.Equal(t, chunks[0].Text, chunks[1].Text)
}

func TestIngestPathsLeavesFilesInPlace(t *testing.T) {
	store := &recordingStore{}
	svc, _ := newTestIngestion(t, store)

	path := filepath.Join(t.TempDir(), "kept.txt")
	require.NoError(t, os.WriteFile(path, []byte("dogs bark"), 0o644))

	ids, err := svc.IngestPaths(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Equal(t, "kept.txt", store.indexedChunks()[0].Source)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestIngestPathsErrors(t *testing.T) {
	svc, _ := newTestIngestion(t, &recordingStore{})

	_, err := svc.IngestPaths(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = svc.IngestPaths(context.Background(), []string{"/tmp/a.docx"})
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = svc.IngestPaths(context.Background(), []string{filepath.Join(t.TempDir(), "missing.txt")})
	assert.Error(t, err)
}

func TestIngestFilesPDFKeepsPageNumbers(t *testing.T) {
	store := &recordingStore{}
	svc, staging := newTestIngestion(t, store)

	ids, err := svc.IngestFiles(context.Background(), []models.UploadedFile{
		{Name: "animals.pdf", Content: bytes.NewReader(buildPDF("Cats eat fish", "Dogs chase cats", "Birds sing"))},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	chunks := store.indexedChunks()
	require.Len(t, chunks, 3)
	for i, want := range []string{"Cats eat fish", "Dogs chase cats", "Birds sing"} {
		assert.Equal(t, "animals.pdf", chunks[i].Source)
		assert.Equal(t, i+1, chunks[i].Page)
		assert.Contains(t, chunks[i].Text, want)
	}

	assertStagingEmpty(t, staging)
}

func TestIngestFilesRejectsDuplicateBaseNames(t *testing.T) {
	store := &recordingStore{}
	svc, staging := newTestIngestion(t, store)

	_, err := svc.IngestFiles(context.Background(), []models.UploadedFile{
		{Name: "a/report.txt", Content: strings.NewReader("first")},
		{Name: "b/report.txt", Content: strings.NewReader("second")},
	})
	assert.ErrorIs(t, err, ErrInvalidFilename)
	assert.Empty(t, store.indexCalls)
	assertStagingEmpty(t, staging)
}
