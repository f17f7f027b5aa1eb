package rag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// MultiSourceConfig controls the fan-out across named knowledge sources.
type MultiSourceConfig struct {
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

func getDefaultMultiSourceConfig() *MultiSourceConfig {
	return &MultiSourceConfig{
		Concurrency: 4,
		Timeout:     30 * time.Second,
	}
}

// SourceResult carries one source's retrieval outcome through the fan-in.
type SourceResult struct {
	Source  string          `json:"source"`
	Results []*ScoredResult `json:"results"`
	Err     error           `json:"-"`
}

// RetrieveMulti queries several named knowledge sources in parallel through a
// bounded worker pool, then merges, dedupes, and re-sorts the combined
// results. Workers share no mutable state; a source that errors contributes
// nothing and the error is logged, matching single-document behavior where
// retrieval degrades instead of failing.
func (r *Retriever) RetrieveMulti(ctx context.Context, query string, sources map[string]*Document, maxResults int, config *MultiSourceConfig) ([]*ScoredResult, error) {
	if config == nil {
		config = getDefaultMultiSourceConfig()
	}
	if len(sources) == 0 {
		return []*ScoredResult{}, nil
	}

	pool, err := ants.NewPool(config.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	outcomes := make(chan SourceResult, len(sources))
	var wg sync.WaitGroup

	for name, doc := range sources {
		wg.Add(1)
		name, doc := name, doc

		submitErr := pool.Submit(func() {
			defer wg.Done()
			results, err := r.Retrieve(ctx, query, doc, maxResults)
			outcomes <- SourceResult{Source: name, Results: results, Err: err}
		})
		if submitErr != nil {
			wg.Done()
			outcomes <- SourceResult{Source: name, Err: fmt.Errorf("failed to submit source %s: %w", name, submitErr)}
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("Multi-source retrieval timed out, merging partial results",
			"query", query,
			"sources", len(sources),
		)
	}

	// The channel is buffered to len(sources), so late workers never block;
	// drain whatever has arrived without waiting for stragglers.
	var merged []*ScoredResult
drain:
	for i := 0; i < len(sources); i++ {
		var outcome SourceResult
		select {
		case outcome = <-outcomes:
		default:
			break drain
		}
		if outcome.Err != nil {
			r.logger.Warn("Source retrieval failed",
				"source", outcome.Source,
				"error", outcome.Err,
			)
			continue
		}
		for _, result := range outcome.Results {
			if result.Chunk.Metadata == nil {
				result.Chunk.Metadata = make(map[string]string)
			}
			result.Chunk.Metadata["knowledge_source"] = outcome.Source
		}
		merged = append(merged, outcome.Results...)
	}

	merged = truncateResults(dedupeResults(sortResults(merged)), maxResults)
	return merged, nil
}
