package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// IndexerConfig controls the corpus watcher.
type IndexerConfig struct {
	WatchPaths    []string      `yaml:"watch_paths" json:"watch_paths"`
	DebounceDelay time.Duration `yaml:"debounce_delay" json:"debounce_delay"`
}

func getDefaultIndexerConfig() *IndexerConfig {
	return &IndexerConfig{
		DebounceDelay: 500 * time.Millisecond,
	}
}

// Indexer watches corpus directories and re-chunks changed documents,
// pushing the fresh chunks to the vector backend when one is configured.
// Rapid successive writes to the same file collapse into one reindex.
type Indexer struct {
	config  *IndexerConfig
	logger  *slog.Logger
	loader  *DocumentLoader
	vector  *WeaviateClient
	watcher *fsnotify.Watcher

	mutex      sync.Mutex
	debouncers map[string]func(func())

	// OnIndexed, when set, is called after each successful reindex with the
	// document and its chunks. Used by callers that maintain their own
	// in-memory corpus view.
	OnIndexed func(doc *Document, chunks []*DocumentChunk)
}

// NewIndexer creates a corpus watcher. vector may be nil; chunks are then
// only handed to OnIndexed.
func NewIndexer(config *IndexerConfig, loader *DocumentLoader, vector *WeaviateClient) (*Indexer, error) {
	if config == nil {
		config = getDefaultIndexerConfig()
	}
	if loader == nil {
		loader = NewDocumentLoader(nil)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	idx := &Indexer{
		config:     config,
		logger:     slog.Default().With("component", "indexer"),
		loader:     loader,
		vector:     vector,
		watcher:    watcher,
		debouncers: make(map[string]func(func())),
	}

	for _, path := range config.WatchPaths {
		if err := watcher.Add(path); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}

	return idx, nil
}

// Run processes filesystem events until the context is cancelled.
func (idx *Indexer) Run(ctx context.Context) error {
	idx.logger.Info("Indexer started", "paths", idx.config.WatchPaths)
	defer idx.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			idx.logger.Info("Indexer stopped")
			return ctx.Err()

		case event, ok := <-idx.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !idx.loader.isSupportedFile(event.Name) {
				continue
			}
			idx.scheduleReindex(ctx, event.Name)

		case err, ok := <-idx.watcher.Errors:
			if !ok {
				return nil
			}
			idx.logger.Error("Watcher error", "error", err)
		}
	}
}

// scheduleReindex debounces per-path so a burst of writes triggers a single
// reindex after the quiet period.
func (idx *Indexer) scheduleReindex(ctx context.Context, path string) {
	idx.mutex.Lock()
	debounced, ok := idx.debouncers[path]
	if !ok {
		debounced = debounce.New(idx.config.DebounceDelay)
		idx.debouncers[path] = debounced
	}
	idx.mutex.Unlock()

	debounced(func() {
		if err := idx.reindex(ctx, path); err != nil {
			idx.logger.Error("Reindex failed", "path", path, "error", err)
		}
	})
}

// reindex reloads a document, re-chunks it, and pushes chunks to the vector
// backend.
func (idx *Indexer) reindex(ctx context.Context, path string) error {
	doc, err := idx.loader.LoadDocument(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	docType := Classify(doc.Content)
	chunks := Segment(doc.Content, docType)
	if chunks == nil {
		pieces, err := ChunkText(doc.Content, ChunkOptions{MaxSize: 1500, Overlap: 200, RespectSectionBreaks: true})
		if err != nil {
			return fmt.Errorf("failed to chunk document: %w", err)
		}
		for _, piece := range pieces {
			chunks = append(chunks, &DocumentChunk{
				ID:           chunkID(piece),
				DocumentID:   doc.ID,
				Content:      piece,
				DocumentType: docType,
				Keywords:     extractKeywords(piece),
				WordCount:    countWords(piece),
			})
		}
	}

	if idx.vector != nil {
		for _, chunk := range chunks {
			if err := idx.vector.AddChunk(ctx, doc.Source, chunk); err != nil {
				return fmt.Errorf("failed to index chunk: %w", err)
			}
		}
	}

	if idx.OnIndexed != nil {
		idx.OnIndexed(doc, chunks)
	}

	idx.logger.Info("Document reindexed", "path", path, "type", docType, "chunks", len(chunks))
	return nil
}
