package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github/itish2003/docqa/config"
	"github/itish2003/docqa/controller"
	"github/itish2003/docqa/history"
	"github/itish2003/docqa/llm"
	"github/itish2003/docqa/services"
	"github/itish2003/docqa/vectorstore"
)

const shutdownTimeout = 15 * time.Second

// App owns every long-lived handle the service needs.
type App struct {
	cfg       *config.Config
	rag       services.RAGService
	ingestion services.IngestionService
	closers   []func() error
}

// NewApp connects to the configured backends and wires the services.
func NewApp(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{cfg: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	chatModel, err := llm.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	embedder, err := llm.NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	backend, err := app.newBackend(ctx)
	if err != nil {
		return nil, err
	}
	index := vectorstore.NewVectorIndex(embedder, backend, vectorstore.Options{
		K:      cfg.Retrieval.K,
		FetchK: cfg.Retrieval.FetchK,
		Lambda: cfg.Retrieval.Lambda,
	})

	hist, err := app.newHistoryStore(ctx)
	if err != nil {
		return nil, err
	}

	loader, err := services.NewDocumentLoader(cfg.PDF.Engine, cfg.PDF.UnidocLicenseKey)
	if err != nil {
		return nil, err
	}
	staging, err := services.NewStaging(cfg.Staging.Folder)
	if err != nil {
		return nil, err
	}

	app.ingestion = services.NewIngestionService(index, loader, staging, cfg.Splitter.ChunkSize, cfg.Splitter.ChunkOverlap, nil)
	app.rag = services.NewRAGService(index, hist,
		services.NewContextualizer(chatModel, hist),
		services.NewAnswerer(chatModel),
		nil,
	)
	return app, nil
}

func (a *App) newBackend(ctx context.Context) (vectorstore.Backend, error) {
	switch a.cfg.Index.Backend {
	case config.BackendChroma:
		backend, err := vectorstore.NewChromaBackend(ctx, a.cfg.Chroma.URL, a.cfg.Index.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("connect to chroma: %w", err)
		}
		a.closers = append(a.closers, backend.Close)
		return backend, nil
	case config.BackendPgvector:
		pool, err := vectorstore.NewPostgresPool(ctx, a.cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		backend, err := vectorstore.NewPgvectorBackend(ctx, pool, a.cfg.Index.Name, a.cfg.Embeddings.Dimension)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case config.BackendMemory:
		return vectorstore.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %q", a.cfg.Index.Backend)
	}
}

func (a *App) newHistoryStore(ctx context.Context) (history.Store, error) {
	switch a.cfg.History.Backend {
	case config.HistoryRedis:
		rdb, err := history.NewRedisClient(ctx, a.cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		return history.NewRedisStore(rdb, a.cfg.History.TTL), nil
	case config.HistoryMemory:
		return history.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown history backend: %q", a.cfg.History.Backend)
	}
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("Warning: Failed to close resource: %v", err)
		}
	}
	a.closers = nil
}

// Serve runs the HTTP server, and the inbox watcher when configured, until ctx
// is cancelled. Chunks indexed by this process are deleted on the way out when
// the index is not meant to persist.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	ctrl := controller.NewRAGController(a.rag, a.ingestion, controller.Options{
		MaxUploadBytes: a.cfg.Upload.MaxBytes,
		RequestTimeout: a.cfg.RequestTimeout,
	})
	srv := &http.Server{
		Addr:         a.cfg.Server.Address,
		Handler:      controller.NewRouter(ctrl),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	watcherDone := make(chan struct{})
	if a.cfg.Inbox.Folder != "" {
		watcher := services.NewInboxWatcher(a.cfg.Inbox.Folder, a.ingestion, services.DefaultSettleDelay, nil)
		go func() {
			defer close(watcherDone)
			if err := watcher.Run(ctx); err != nil {
				log.Printf("WATCHER ERROR: %v", err)
			}
		}()
	} else {
		close(watcherDone)
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Go Gin backend server starting on %s", a.cfg.Server.Address)
		log.Printf("Health check available at: http://localhost%s/health", a.cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case runErr = <-serveErr:
	case <-ctx.Done():
		log.Println("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: Server shutdown: %v", err)
	}
	stop()
	<-watcherDone

	if a.cfg.Index.ResetOnShutdown {
		if _, err := a.rag.DeleteIndexed(shutdownCtx); err != nil {
			log.Printf("Warning: Failed to delete indexed chunks: %v", err)
		}
	}
	return runErr
}
