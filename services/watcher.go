package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long a file must go without write events before
// the watcher ingests it.
const DefaultSettleDelay = 2 * time.Second

// InboxWatcher ingests documents dropped into a folder and deletes them once
// they are indexed. Files that fail to ingest are left in place.
type InboxWatcher struct {
	dir         string
	ingestion   IngestionService
	settleDelay time.Duration
	logger      *log.Logger

	mu      sync.Mutex
	pending map[string]*pendingFile
	wg      sync.WaitGroup
}

type pendingFile struct {
	timer *time.Timer
}

func NewInboxWatcher(dir string, ingestion IngestionService, settleDelay time.Duration, logger *log.Logger) *InboxWatcher {
	if logger == nil {
		logger = log.Default()
	}
	if settleDelay <= 0 {
		settleDelay = DefaultSettleDelay
	}
	return &InboxWatcher{
		dir:         dir,
		ingestion:   ingestion,
		settleDelay: settleDelay,
		logger:      logger,
		pending:     make(map[string]*pendingFile),
	}
}

// Run ingests what is already in the inbox, then watches it until ctx is
// cancelled.
func (w *InboxWatcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox folder: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to add path to watcher: %w", err)
	}
	w.logger.Printf("WATCHER: Watching directory: %s", w.dir)

	w.scan(ctx)

	defer func() {
		w.stopPending()
		w.wg.Wait()
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !IsSupportedFile(event.Name) {
				continue
			}
			// Copies and editor saves produce several Create/Write events, so
			// ingestion waits for the file to settle.
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			} else if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.cancel(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("WATCHER ERROR: %v", err)

		case <-ctx.Done():
			w.logger.Println("WATCHER: Context cancelled, shutting down watcher.")
			return nil
		}
	}
}

// scan queues the supported files already present in the inbox.
func (w *InboxWatcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Printf("WATCHER ERROR: Could not scan %s: %v", w.dir, err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() && IsSupportedFile(e.Name()) {
			w.schedule(ctx, filepath.Join(w.dir, e.Name()))
		}
	}
}

func (w *InboxWatcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok && p.timer.Stop() {
		p.timer.Reset(w.settleDelay)
		return
	}

	p := &pendingFile{}
	w.wg.Add(1)
	p.timer = time.AfterFunc(w.settleDelay, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == p {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
	w.pending[path] = p
}

func (w *InboxWatcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok && p.timer.Stop() {
		delete(w.pending, path)
		w.wg.Done()
	}
}

func (w *InboxWatcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, p := range w.pending {
		if p.timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

func (w *InboxWatcher) ingest(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}

	w.logger.Printf("WATCHER: Ingesting %s", path)
	ids, err := w.ingestion.IngestPaths(ctx, []string{path})
	if err != nil {
		w.logger.Printf("WATCHER ERROR: Failed to process file %s: %v", path, err)
		return
	}
	if err := os.Remove(path); err != nil {
		w.logger.Printf("WATCHER WARN: Indexed %s but could not remove it: %v", path, err)
		return
	}
	w.logger.Printf("WATCHER: Indexed %d chunks from %s", len(ids), filepath.Base(path))
}
