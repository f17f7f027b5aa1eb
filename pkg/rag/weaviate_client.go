package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// WeaviateConfig holds connection settings for the vector index backend.
type WeaviateConfig struct {
	Host        string        `yaml:"host" json:"host"`
	Scheme      string        `yaml:"scheme" json:"scheme"`
	APIKey      string        `yaml:"api_key" json:"api_key"`
	ClassName   string        `yaml:"class_name" json:"class_name"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	AutoSchema  bool          `yaml:"auto_schema" json:"auto_schema"`
	HybridAlpha float32       `yaml:"hybrid_alpha" json:"hybrid_alpha"`
}

func getDefaultWeaviateConfig() *WeaviateConfig {
	return &WeaviateConfig{
		Scheme:      "http",
		ClassName:   "KnowledgeChunk",
		Timeout:     30 * time.Second,
		HybridAlpha: 0.7,
	}
}

// WeaviateClient adapts the Weaviate vector database to the VectorSearcher
// boundary the orchestrator consumes. Index lifecycle beyond optional schema
// bootstrap is not managed here.
type WeaviateClient struct {
	client *weaviate.Client
	config *WeaviateConfig
	logger *slog.Logger
}

// NewWeaviateClient creates a client for the configured Weaviate instance.
func NewWeaviateClient(config *WeaviateConfig) (*WeaviateClient, error) {
	if config == nil {
		return nil, fmt.Errorf("weaviate config cannot be nil")
	}
	if config.Host == "" {
		return nil, fmt.Errorf("weaviate host cannot be empty")
	}
	if config.Scheme == "" {
		config.Scheme = "http"
	}
	if config.ClassName == "" {
		config.ClassName = "KnowledgeChunk"
	}

	clientConfig := weaviate.Config{
		Host:   config.Host,
		Scheme: config.Scheme,
	}
	if config.APIKey != "" {
		clientConfig.AuthConfig = auth.ApiKey{Value: config.APIKey}
	}

	client, err := weaviate.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	wc := &WeaviateClient{
		client: client,
		config: config,
		logger: slog.Default().With("component", "weaviate-client"),
	}

	if config.AutoSchema {
		if err := wc.ensureSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	return wc, nil
}

// ensureSchema creates the chunk class if it does not exist yet.
func (wc *WeaviateClient) ensureSchema(ctx context.Context) error {
	exists, err := wc.client.Schema().ClassExistenceChecker().
		WithClassName(wc.config.ClassName).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check class existence: %w", err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:       wc.config.ClassName,
		Description: "Document chunk with structural context",
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "sectionTitle", DataType: []string{"string"}},
			{Name: "documentType", DataType: []string{"string"}},
			{Name: "source", DataType: []string{"string"}},
			{Name: "parentContext", DataType: []string{"string"}},
			{Name: "keywords", DataType: []string{"string[]"}},
		},
	}

	if err := wc.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create class %s: %w", wc.config.ClassName, err)
	}

	wc.logger.Info("Weaviate class created", "class", wc.config.ClassName)
	return nil
}

// Search runs a hybrid query against the chunk class and maps the hits onto
// the orchestrator's VectorHit boundary.
func (wc *WeaviateClient) Search(ctx context.Context, query string, topK int) ([]*VectorHit, error) {
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if topK <= 0 {
		topK = 10
	}

	ctx, cancel := context.WithTimeout(ctx, wc.config.Timeout)
	defer cancel()

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "sectionTitle"},
		{Name: "documentType"},
		{Name: "source"},
		{Name: "parentContext"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "id"},
			{Name: "score"},
		}},
	}

	result, err := wc.client.GraphQL().Get().
		WithClassName(wc.config.ClassName).
		WithHybrid(wc.client.GraphQL().HybridArgumentBuilder().
			WithQuery(query).
			WithAlpha(wc.config.HybridAlpha)).
		WithFields(fields...).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	var hits []*VectorHit
	if result.Data != nil {
		if get, ok := result.Data["Get"].(map[string]interface{}); ok {
			if items, ok := get[wc.config.ClassName].([]interface{}); ok {
				for _, item := range items {
					if itemMap, ok := item.(map[string]interface{}); ok {
						hits = append(hits, parseVectorHit(itemMap))
					}
				}
			}
		}
	}

	wc.logger.Debug("Weaviate search completed", "query", query, "hits", len(hits))
	return hits, nil
}

// parseVectorHit converts a GraphQL result item to a VectorHit.
func parseVectorHit(item map[string]interface{}) *VectorHit {
	hit := &VectorHit{Metadata: make(map[string]string)}

	if val, ok := item["content"].(string); ok {
		hit.Content = val
	}
	for _, key := range []string{"sectionTitle", "documentType", "source", "parentContext"} {
		if val, ok := item[key].(string); ok && val != "" {
			hit.Metadata[key] = val
		}
	}
	if additional, ok := item["_additional"].(map[string]interface{}); ok {
		switch score := additional["score"].(type) {
		case float64:
			hit.Score = score
		case string:
			fmt.Sscanf(score, "%f", &hit.Score)
		}
	}

	return hit
}

// AddChunk indexes a chunk into the vector backend.
func (wc *WeaviateClient) AddChunk(ctx context.Context, source string, chunk *DocumentChunk) error {
	if chunk == nil {
		return fmt.Errorf("chunk cannot be nil")
	}

	ctx, cancel := context.WithTimeout(ctx, wc.config.Timeout)
	defer cancel()

	properties := map[string]interface{}{
		"content":       chunk.Content,
		"sectionTitle":  chunk.SectionTitle,
		"documentType":  string(chunk.DocumentType),
		"source":        source,
		"parentContext": chunk.ParentContext,
		"keywords":      chunk.Keywords,
	}

	_, err := wc.client.Data().Creator().
		WithClassName(wc.config.ClassName).
		WithProperties(properties).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to index chunk %s: %w", chunk.ID, err)
	}

	return nil
}
