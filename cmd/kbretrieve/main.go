package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kbforge/knowledge-core/pkg/rag"
)

func main() {
	var (
		mode       string
		configPath string
		docPath    string
		query      string
		maxResults int
		maxSize    int
		overlap    int
		verbose    bool
	)

	flag.StringVar(&mode, "mode", "retrieve", "Operation: classify, chunk, retrieve, or watch")
	flag.StringVar(&configPath, "config", "", "Optional YAML config file")
	flag.StringVar(&docPath, "doc", "", "Document file (or directory for watch mode)")
	flag.StringVar(&query, "query", "", "Query text for retrieve mode")
	flag.IntVar(&maxResults, "max", 5, "Maximum results for retrieve mode")
	flag.IntVar(&maxSize, "max-size", 1500, "Maximum chunk size for chunk mode")
	flag.IntVar(&overlap, "overlap", 200, "Chunk overlap for chunk mode")
	flag.BoolVar(&verbose, "v", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if docPath == "" {
		fmt.Fprintln(os.Stderr, "required flag: -doc")
		os.Exit(2)
	}

	config := rag.DefaultConfig()
	if configPath != "" {
		loaded, err := rag.LoadConfig(configPath)
		if err != nil {
			slog.Error("Failed to load config", "error", err)
			os.Exit(1)
		}
		config = loaded
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, mode, config, docPath, query, maxResults, maxSize, overlap); err != nil {
		slog.Error("Command failed", "mode", mode, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, mode string, config *rag.Config, docPath, query string, maxResults, maxSize, overlap int) error {
	loader := rag.NewDocumentLoader(config.Loader)

	switch mode {
	case "classify":
		doc, err := loader.LoadDocument(ctx, docPath)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"source": doc.Source,
			"type":   rag.Classify(doc.Content),
		})

	case "chunk":
		doc, err := loader.LoadDocument(ctx, docPath)
		if err != nil {
			return err
		}
		docType := rag.Classify(doc.Content)
		chunks := rag.Segment(doc.Content, docType)
		if len(chunks) == 0 {
			pieces, err := rag.ChunkText(doc.Content, rag.ChunkOptions{
				MaxSize:              maxSize,
				Overlap:              overlap,
				RespectSectionBreaks: true,
			})
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"type": docType, "chunks": pieces})
		}
		return printJSON(map[string]interface{}{"type": docType, "chunks": chunks})

	case "retrieve":
		if query == "" {
			return fmt.Errorf("retrieve mode requires -query")
		}

		var vector rag.VectorSearcher
		if config.Weaviate != nil {
			client, err := rag.NewWeaviateClient(config.Weaviate)
			if err != nil {
				slog.Warn("Vector backend unavailable, relying on fallback stages", "error", err)
			} else {
				vector = client
			}
		}
		var redisCache *rag.RedisCache
		if config.Redis != nil {
			cache, err := rag.NewRedisCache(config.Redis)
			if err != nil {
				slog.Warn("Redis cache unavailable", "error", err)
			} else {
				redisCache = cache
				defer cache.Close()
			}
		}

		retriever := rag.NewRetriever(config.Retriever, vector, redisCache, nil)

		info, err := os.Stat(docPath)
		if err != nil {
			return err
		}
		if info.IsDir() {
			docs, err := loader.LoadDirectory(ctx, docPath)
			if err != nil {
				return err
			}
			sources := make(map[string]*rag.Document, len(docs))
			for _, doc := range docs {
				sources[doc.Source] = doc
			}
			results, err := retriever.RetrieveMulti(ctx, query, sources, maxResults, config.MultiSource)
			if err != nil {
				return err
			}
			return printJSON(results)
		}

		results, err := retriever.RetrieveFromFile(ctx, query, docPath, maxResults)
		if err != nil {
			return err
		}
		return printJSON(results)

	case "watch":
		var vector *rag.WeaviateClient
		if config.Weaviate != nil {
			client, err := rag.NewWeaviateClient(config.Weaviate)
			if err != nil {
				return fmt.Errorf("watch mode needs the vector backend: %w", err)
			}
			vector = client
		}

		indexerConfig := config.Indexer
		if len(indexerConfig.WatchPaths) == 0 {
			indexerConfig.WatchPaths = []string{docPath}
		}
		indexer, err := rag.NewIndexer(indexerConfig, loader, vector)
		if err != nil {
			return err
		}
		return indexer.Run(ctx)

	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
