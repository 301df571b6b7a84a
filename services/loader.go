package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github/itish2003/docqa/config"
	"github/itish2003/docqa/models"
)

// DocumentLoader turns files on disk into page-level documents. Every document
// carries "source" (base file name) and "page" (1-based) metadata.
type DocumentLoader struct {
	pdfEngine string
}

// NewDocumentLoader selects the PDF engine. unipdf needs a metered license key.
func NewDocumentLoader(engine, unidocLicenseKey string) (*DocumentLoader, error) {
	switch engine {
	case "", config.PDFEngineLedongthuc:
		return &DocumentLoader{pdfEngine: config.PDFEngineLedongthuc}, nil
	case config.PDFEngineUnipdf:
		if err := license.SetMeteredKey(unidocLicenseKey); err != nil {
			return nil, fmt.Errorf("failed to set Unidoc license key: %w", err)
		}
		return &DocumentLoader{pdfEngine: config.PDFEngineUnipdf}, nil
	default:
		return nil, fmt.Errorf("unknown pdf engine: %s", engine)
	}
}

// IsSupportedFile reports whether the loader can read path.
func IsSupportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md":
		return true
	default:
		return false
	}
}

// LoadDirectory loads every supported file directly inside dir, in name order.
func (l *DocumentLoader) LoadDirectory(ctx context.Context, dir string) ([]schema.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && IsSupportedFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var docs []schema.Document
	for _, name := range names {
		fileDocs, err := l.LoadFile(ctx, filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		docs = append(docs, fileDocs...)
	}
	return docs, nil
}

// LoadFile reads one file. PDFs yield one document per page; text files yield
// a single document on page 1.
func (l *DocumentLoader) LoadFile(ctx context.Context, path string) ([]schema.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		docs []schema.Document
		err  error
	)
	switch ext {
	case ".txt", ".md":
		docs, err = loadText(ctx, path)
	case ".pdf":
		if l.pdfEngine == config.PDFEngineUnipdf {
			docs, err = loadPDFWithUnipdf(path)
		} else {
			docs, err = loadPDF(ctx, path)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}

	source := filepath.Base(path)
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]any)
		}
		docs[i].Metadata[models.MetaSource] = source
		if _, ok := docs[i].Metadata[models.MetaPage]; !ok {
			docs[i].Metadata[models.MetaPage] = 1
		}
	}
	return docs, nil
}

func loadText(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return documentloaders.NewText(f).Load(ctx)
}

func loadPDF(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return documentloaders.NewPDF(f, info.Size()).Load(ctx)
}

// loadPDFWithUnipdf uses UniPDF to get the text of each page.
func loadPDFWithUnipdf(path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return nil, err
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, err
	}

	docs := make([]schema.Document, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, err
		}

		ex, err := extractor.New(page)
		if err != nil {
			return nil, err
		}

		text, err := ex.ExtractText()
		if err != nil {
			return nil, err
		}
		docs = append(docs, schema.Document{
			PageContent: text,
			Metadata: map[string]any{
				models.MetaPage: i,
				"total_pages":   numPages,
			},
		})
	}
	return docs, nil
}

// pageOf reads the page number out of document metadata.
func pageOf(metadata map[string]any) int {
	switch p := metadata[models.MetaPage].(type) {
	case int:
		return p
	case int64:
		return int(p)
	case float64:
		return int(p)
	default:
		return 0
	}
}
