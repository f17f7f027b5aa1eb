package rag

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline stage names, reported in results and metrics.
const (
	StageVector      = "vector"
	StagePDFSections = "pdf_sections"
	StageStructure   = "structure"
	StageLineWindow  = "line_window"
	StageCache       = "cache"
)

// VectorHit is a single hit returned by the vector index backend.
type VectorHit struct {
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// VectorSearcher is the boundary the orchestrator consumes from the vector
// index backend. Index lifecycle is not managed through it.
type VectorSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]*VectorHit, error)
}

// RetrieverConfig holds configuration for the retrieval pipeline.
type RetrieverConfig struct {
	MaxChunkSize       int     `yaml:"max_chunk_size" json:"max_chunk_size"`
	ChunkOverlap       int     `yaml:"chunk_overlap" json:"chunk_overlap"`
	VectorTopK         int     `yaml:"vector_top_k" json:"vector_top_k"`
	MinPDFRelevance    float64 `yaml:"min_pdf_relevance" json:"min_pdf_relevance"`
	ContextLinesBefore int     `yaml:"context_lines_before" json:"context_lines_before"`
	ContextLinesAfter  int     `yaml:"context_lines_after" json:"context_lines_after"`

	Cache *MemoryCacheConfig `yaml:"cache" json:"cache"`
}

func getDefaultRetrieverConfig() *RetrieverConfig {
	return &RetrieverConfig{
		MaxChunkSize:       1500,
		ChunkOverlap:       200,
		VectorTopK:         10,
		MinPDFRelevance:    0.1,
		ContextLinesBefore: 10,
		ContextLinesAfter:  15,
		Cache:              getDefaultMemoryCacheConfig(),
	}
}

// stageOutcome is the explicit result of one pipeline stage. A stage that
// produced nothing carries the reason, and the orchestrator decides to
// proceed to the next stage; stages never panic and their errors never reach
// the caller.
type stageOutcome struct {
	results []*ScoredResult
	reason  string
}

// Retriever chains classification, segmentation, chunking, and scoring into
// a staged pipeline with progressively lower-fidelity fallbacks.
type Retriever struct {
	config  *RetrieverConfig
	logger  *slog.Logger
	loader  *DocumentLoader
	vector  VectorSearcher
	cache   *MemoryCache
	redis   *RedisCache
	metrics *pipelineMetrics
}

// NewRetriever creates the retrieval pipeline. vector and redis may be nil;
// the corresponding stages and cache tier are then skipped. A nil registerer
// uses the default Prometheus registry.
func NewRetriever(config *RetrieverConfig, vector VectorSearcher, redis *RedisCache, reg prometheus.Registerer) *Retriever {
	if config == nil {
		config = getDefaultRetrieverConfig()
	}

	return &Retriever{
		config:  config,
		logger:  slog.Default().With("component", "retriever"),
		loader:  NewDocumentLoader(nil),
		vector:  vector,
		cache:   NewMemoryCache(config.Cache, nil),
		redis:   redis,
		metrics: newPipelineMetrics(reg),
	}
}

// PipelineStatus is a point-in-time snapshot of the pipeline's optional
// tiers and cache effectiveness.
type PipelineStatus struct {
	VectorBackend bool               `json:"vector_backend"`
	RedisCache    bool               `json:"redis_cache"`
	CacheMetrics  MemoryCacheMetrics `json:"cache_metrics"`
}

// Status reports which optional tiers are wired and how the result cache is
// performing.
func (r *Retriever) Status() PipelineStatus {
	return PipelineStatus{
		VectorBackend: r.vector != nil,
		RedisCache:    r.redis != nil,
		CacheMetrics:  r.cache.GetMetrics(),
	}
}

// RetrieveFromFile loads a document from disk and retrieves against it. An
// unreadable document yields an empty result list, not an error.
func (r *Retriever) RetrieveFromFile(ctx context.Context, query, path string, maxResults int) ([]*ScoredResult, error) {
	doc, err := r.loader.LoadDocument(ctx, path)
	if err != nil {
		r.logger.Warn("Document could not be read, returning no results", "path", path, "error", err)
		return []*ScoredResult{}, nil
	}
	return r.Retrieve(ctx, query, doc, maxResults)
}

// Retrieve runs the staged pipeline for a query against one document and
// returns results ordered by descending score, truncated to maxResults.
// "No matches" is an empty list, never an error; stage failures are logged,
// counted, and skipped.
func (r *Retriever) Retrieve(ctx context.Context, query string, doc *Document, maxResults int) ([]*ScoredResult, error) {
	started := time.Now()
	defer func() {
		r.metrics.retrievalDuration.Observe(time.Since(started).Seconds())
	}()

	if doc == nil || strings.TrimSpace(doc.Content) == "" {
		return []*ScoredResult{}, nil
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	terms := ExtractQueryTerms(query)
	if len(terms) == 0 {
		return []*ScoredResult{}, nil
	}

	key := ResultCacheKey(query, "retrieve", []string{doc.Source})
	if results, ok := r.cache.Get(key); ok {
		r.metrics.cacheHits.Inc()
		r.metrics.retrievals.WithLabelValues(StageCache).Inc()
		return truncateResults(results, maxResults), nil
	}
	r.metrics.cacheMisses.Inc()
	if r.redis != nil {
		if results, ok := r.redis.GetResults(ctx, key); ok {
			r.cache.Set(key, results)
			r.metrics.retrievals.WithLabelValues(StageCache).Inc()
			return truncateResults(results, maxResults), nil
		}
	}

	stages := []struct {
		name string
		run  func(context.Context, string, []string, *Document) stageOutcome
	}{
		{StageVector, r.retrieveVector},
		{StagePDFSections, r.retrievePDFSections},
		{StageStructure, r.retrieveStructure},
		{StageLineWindow, r.retrieveLineWindow},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome := stage.run(ctx, query, terms, doc)
		if len(outcome.results) == 0 {
			if outcome.reason != "" {
				r.logger.Debug("Stage produced no results, falling back",
					"stage", stage.name,
					"reason", outcome.reason,
				)
				r.metrics.stageFailures.WithLabelValues(stage.name).Inc()
			}
			continue
		}

		results := truncateResults(dedupeResults(sortResults(outcome.results)), maxResults)
		r.cache.Set(key, results)
		if r.redis != nil {
			if err := r.redis.SetResults(ctx, key, query, results); err != nil {
				r.logger.Warn("Failed to populate redis cache", "error", err)
			}
		}

		r.metrics.retrievals.WithLabelValues(stage.name).Inc()
		r.logger.Info("Retrieval completed",
			"stage", stage.name,
			"query", query,
			"results", len(results),
			"took", time.Since(started),
		)
		return results, nil
	}

	r.metrics.retrievals.WithLabelValues("none").Inc()
	return []*ScoredResult{}, nil
}

// retrieveVector delegates to the vector index backend when one is
// configured.
func (r *Retriever) retrieveVector(ctx context.Context, query string, terms []string, doc *Document) stageOutcome {
	if r.vector == nil {
		return stageOutcome{reason: "no vector backend configured"}
	}

	hits, err := r.vector.Search(ctx, query, r.config.VectorTopK)
	if err != nil {
		return stageOutcome{reason: fmt.Sprintf("vector search failed: %v", err)}
	}
	if len(hits) == 0 {
		return stageOutcome{reason: "vector search returned no hits"}
	}

	var results []*ScoredResult
	for _, hit := range hits {
		if strings.TrimSpace(hit.Content) == "" {
			continue
		}
		_, matched := Score(hit.Content, terms)
		chunk := &DocumentChunk{
			ID:           chunkID(hit.Content),
			DocumentID:   doc.ID,
			Content:      hit.Content,
			DocumentType: DocumentType(hit.Metadata["documentType"]),
			SectionTitle: hit.Metadata["sectionTitle"],
			WordCount:    countWords(hit.Content),
			Metadata:     hit.Metadata,
		}
		results = append(results, &ScoredResult{
			Chunk:        chunk,
			Score:        clampScore(hit.Score),
			MatchedTerms: matched,
			Stage:        StageVector,
		})
	}

	if len(results) == 0 {
		return stageOutcome{reason: "vector hits carried no usable content"}
	}
	return stageOutcome{results: results}
}

// retrievePDFSections extracts text page by page from a source PDF and runs
// document-aware chunking over each page, keeping results above the
// relevance floor so weak matches fall through to the next stage.
func (r *Retriever) retrievePDFSections(ctx context.Context, query string, terms []string, doc *Document) stageOutcome {
	if !strings.EqualFold(filepath.Ext(doc.Source), ".pdf") {
		return stageOutcome{reason: "document source is not a PDF"}
	}

	pages, err := PDFPages(ctx, doc.Source)
	if err != nil {
		return stageOutcome{reason: fmt.Sprintf("PDF extraction failed: %v", err)}
	}

	var results []*ScoredResult
	for pageIdx, pageText := range pages {
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}

		docType := Classify(pageText)
		chunks := Segment(pageText, docType)
		if chunks == nil {
			chunks = r.fallbackChunks(pageText, docType)
		}
		chunks = r.splitOversized(chunks)

		for _, chunk := range chunks {
			score, matched := Score(chunk.Content, terms)
			if score <= r.config.MinPDFRelevance {
				continue
			}
			chunk.DocumentID = doc.ID
			if chunk.Metadata == nil {
				chunk.Metadata = make(map[string]string)
			}
			chunk.Metadata["page"] = strconv.Itoa(pageIdx + 1)
			results = append(results, &ScoredResult{
				Chunk:        chunk,
				Score:        score,
				MatchedTerms: matched,
				Stage:        StagePDFSections,
			})
		}
	}

	if len(results) == 0 {
		return stageOutcome{reason: "no PDF sections above relevance floor"}
	}
	return stageOutcome{results: results}
}

// retrieveStructure classifies the document, segments it along structural
// markers, re-chunks oversized spans, and scores everything against the
// query terms.
func (r *Retriever) retrieveStructure(ctx context.Context, query string, terms []string, doc *Document) stageOutcome {
	docType := Classify(doc.Content)
	chunks := Segment(doc.Content, docType)
	if len(chunks) == 0 {
		return stageOutcome{reason: fmt.Sprintf("no structural markers for type %s", docType)}
	}
	chunks = r.splitOversized(chunks)

	var results []*ScoredResult
	for _, chunk := range chunks {
		score, matched := Score(chunk.Content, terms)
		if score == 0 {
			continue
		}
		chunk.DocumentID = doc.ID
		results = append(results, &ScoredResult{
			Chunk:        chunk,
			Score:        score,
			MatchedTerms: matched,
			Stage:        StageStructure,
		})
	}

	if len(results) == 0 {
		return stageOutcome{reason: "no structural spans matched the query"}
	}
	return stageOutcome{results: results}
}

// retrieveLineWindow is the lowest-fidelity fallback: scan line by line and
// on any term hit take a surrounding window of lines as a candidate.
func (r *Retriever) retrieveLineWindow(ctx context.Context, query string, terms []string, doc *Document) stageOutcome {
	lines := strings.Split(doc.Content, "\n")
	docType := Classify(doc.Content)

	var results []*ScoredResult
	for i := 0; i < len(lines); i++ {
		lower := strings.ToLower(lines[i])
		hit := false
		for _, term := range terms {
			if strings.Contains(lower, strings.ToLower(term)) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}

		from := i - r.config.ContextLinesBefore
		if from < 0 {
			from = 0
		}
		to := i + r.config.ContextLinesAfter
		if to > len(lines) {
			to = len(lines)
		}

		window := strings.TrimSpace(strings.Join(lines[from:to], "\n"))
		if window == "" {
			continue
		}

		score, matched := Score(window, terms)
		if score == 0 {
			continue
		}
		results = append(results, &ScoredResult{
			Chunk: &DocumentChunk{
				ID:           chunkID(window),
				DocumentID:   doc.ID,
				Content:      window,
				DocumentType: docType,
				WordCount:    countWords(window),
				Metadata:     map[string]string{"line": strconv.Itoa(from + 1)},
			},
			Score:        score,
			MatchedTerms: matched,
			Stage:        StageLineWindow,
		})

		// Skip past the window so adjacent hits do not flood the candidate
		// list with near-identical spans.
		i = to - 1
	}

	if len(results) == 0 {
		return stageOutcome{reason: "no line-level term hits"}
	}
	return stageOutcome{results: results}
}

// splitOversized replaces chunks larger than the configured maximum with new
// chunk objects produced by the word-boundary chunker. The original chunk is
// discarded, never mutated.
func (r *Retriever) splitOversized(chunks []*DocumentChunk) []*DocumentChunk {
	var out []*DocumentChunk

	for _, chunk := range chunks {
		if len(chunk.Content) <= r.config.MaxChunkSize {
			out = append(out, chunk)
			continue
		}

		pieces, err := ChunkText(chunk.Content, ChunkOptions{
			MaxSize:              r.config.MaxChunkSize,
			Overlap:              r.config.ChunkOverlap,
			RespectSectionBreaks: true,
		})
		if err != nil {
			r.logger.Warn("Chunking oversized span failed, keeping it whole",
				"chunk_id", chunk.ID,
				"error", err,
			)
			out = append(out, chunk)
			continue
		}

		searchFrom := 0
		for _, piece := range pieces {
			rel := strings.Index(chunk.Content[searchFrom:], piece)
			start := chunk.StartOffset + searchFrom
			if rel >= 0 {
				start = chunk.StartOffset + searchFrom + rel
				searchFrom += rel + len(piece) - r.config.ChunkOverlap
				if searchFrom < 0 {
					searchFrom = 0
				}
			}
			out = append(out, &DocumentChunk{
				ID:             chunkID(piece),
				DocumentID:     chunk.DocumentID,
				Content:        piece,
				DocumentType:   chunk.DocumentType,
				SectionTitle:   chunk.SectionTitle,
				HierarchyPath:  chunk.HierarchyPath,
				HierarchyLevel: chunk.HierarchyLevel,
				ParentContext:  chunk.ParentContext,
				Keywords:       extractKeywords(piece),
				StartOffset:    start,
				EndOffset:      start + len(piece),
				WordCount:      countWords(piece),
			})
		}
	}

	return out
}

// fallbackChunks wraps plain chunker output in chunk objects when a span has
// no structure to segment.
func (r *Retriever) fallbackChunks(content string, docType DocumentType) []*DocumentChunk {
	pieces, err := ChunkText(content, ChunkOptions{
		MaxSize:              r.config.MaxChunkSize,
		Overlap:              r.config.ChunkOverlap,
		RespectSectionBreaks: true,
	})
	if err != nil {
		r.logger.Warn("Fallback chunking failed", "error", err)
		return nil
	}

	var chunks []*DocumentChunk
	for _, piece := range pieces {
		chunks = append(chunks, &DocumentChunk{
			ID:           chunkID(piece),
			Content:      piece,
			DocumentType: docType,
			Keywords:     extractKeywords(piece),
			WordCount:    countWords(piece),
		})
	}
	return chunks
}

func sortResults(results []*ScoredResult) []*ScoredResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

func truncateResults(results []*ScoredResult, max int) []*ScoredResult {
	if len(results) > max {
		return results[:max]
	}
	return results
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
