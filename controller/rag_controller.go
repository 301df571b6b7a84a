package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github/itish2003/docqa/models"
	"github/itish2003/docqa/services"
)

const (
	msgProcessed = "Document Processed!"
	msgError     = "Some error occurred"

	// SessionHeader can carry the session id instead of the JSON body.
	SessionHeader = "X-Session-ID"
)

// Options tunes request handling. Zero values disable the corresponding limit.
type Options struct {
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Logger         *log.Logger
}

// RAGController handles the HTTP requests for our RAG API. It depends on the
// services for the actual business logic.
type RAGController struct {
	ragService services.RAGService
	ingestion  services.IngestionService
	opts       Options
	logger     *log.Logger
}

func NewRAGController(ragService services.RAGService, ingestion services.IngestionService, opts Options) *RAGController {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &RAGController{
		ragService: ragService,
		ingestion:  ingestion,
		opts:       opts,
		logger:     logger,
	}
}

func (c *RAGController) requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	if c.opts.RequestTimeout > 0 {
		return context.WithTimeout(ctx.Request.Context(), c.opts.RequestTimeout)
	}
	return context.WithCancel(ctx.Request.Context())
}

// isClientError reports whether err was caused by the request itself.
func isClientError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.Is(err, services.ErrNoFiles) ||
		errors.Is(err, services.ErrUnsupportedFile) ||
		errors.Is(err, services.ErrInvalidFilename) ||
		errors.Is(err, services.ErrEmptyQuestion) ||
		errors.As(err, &maxBytesErr)
}

func (c *RAGController) fail(ctx *gin.Context, op string, err error) {
	if isClientError(err) {
		c.logger.Printf("CONTROLLER: %s rejected: %v", op, err)
		ctx.String(http.StatusBadRequest, err.Error())
		return
	}
	c.logger.Printf("CONTROLLER ERROR: %s failed: %v", op, err)
	ctx.String(http.StatusInternalServerError, msgError)
}

// UploadDocs is the Gin handler for POST /upload_docs. Every file part of the
// multipart form is ingested, whatever its field name.
func (c *RAGController) UploadDocs(ctx *gin.Context) {
	if c.opts.MaxUploadBytes > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, c.opts.MaxUploadBytes)
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			err = fmt.Errorf("%w: expected a multipart form", services.ErrNoFiles)
		}
		c.fail(ctx, "upload", err)
		return
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var (
		files   []models.UploadedFile
		handles []multipart.File
	)
	defer func() {
		for _, h := range handles {
			h.Close()
		}
	}()
	for _, field := range fields {
		for _, header := range form.File[field] {
			f, err := header.Open()
			if err != nil {
				c.fail(ctx, "upload", fmt.Errorf("open %s: %w", header.Filename, err))
				return
			}
			handles = append(handles, f)
			files = append(files, models.UploadedFile{Name: header.Filename, Content: f})
		}
	}

	reqCtx, cancel := c.requestContext(ctx)
	defer cancel()

	ids, err := c.ingestion.IngestFiles(reqCtx, files)
	if err != nil {
		c.fail(ctx, "upload", err)
		return
	}
	c.logger.Printf("CONTROLLER: Processed %d files into %d chunks", len(files), len(ids))
	ctx.String(http.StatusOK, msgProcessed)
}

// GetAnswer is the Gin handler for GET|POST /get_answer. The question comes
// from the JSON body, or the "text" query parameter when there is no body.
// Entries in "pages" are 1-based page numbers (the first page of a PDF is 1),
// and plain text files always report page 1.
func (c *RAGController) GetAnswer(ctx *gin.Context) {
	var req models.AskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		ctx.String(http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		req.Text = ctx.Query("text")
	}
	if req.SessionID == "" {
		req.SessionID = ctx.GetHeader(SessionHeader)
	}

	reqCtx, cancel := c.requestContext(ctx)
	defer cancel()

	result, err := c.ragService.Ask(reqCtx, req)
	if err != nil {
		c.fail(ctx, "get_answer", err)
		return
	}
	ctx.Header(SessionHeader, result.SessionID)
	ctx.JSON(http.StatusOK, result.Response())
}

// CountDocs is the Gin handler for GET /docs.
func (c *RAGController) CountDocs(ctx *gin.Context) {
	count, err := c.ragService.GetTotalChunks(ctx.Request.Context())
	if err != nil {
		c.fail(ctx, "count", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"chunks": count})
}

// DeleteDocs is the Gin handler for DELETE /docs. It removes the chunks this
// process has indexed.
func (c *RAGController) DeleteDocs(ctx *gin.Context) {
	n, err := c.ragService.DeleteIndexed(ctx.Request.Context())
	if err != nil {
		c.fail(ctx, "delete docs", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"deleted": n})
}

// ClearSession is the Gin handler for DELETE /sessions/:id.
func (c *RAGController) ClearSession(ctx *gin.Context) {
	if err := c.ragService.ClearSession(ctx.Request.Context(), ctx.Param("id")); err != nil {
		c.fail(ctx, "clear session", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}
