package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractQueryTerms(t *testing.T) {
	t.Run("StopwordsAndShortTokensDropped", func(t *testing.T) {
		terms := ExtractQueryTerms("What are the rules on pets?")
		assert.Equal(t, []string{"rules", "pets"}, terms)
	})

	t.Run("SynonymExpansionKeepsBaseTerm", func(t *testing.T) {
		terms := ExtractQueryTerms("board meeting")
		assert.Equal(t, []string{
			"board", "directors", "governance", "management",
			"meeting", "meetings", "session", "assembly",
		}, terms)
	})

	t.Run("Deduped", func(t *testing.T) {
		terms := ExtractQueryTerms("board board meetings meeting")
		seen := make(map[string]bool)
		for _, term := range terms {
			assert.False(t, seen[term], "term %q repeated", term)
			seen[term] = true
		}
	})

	t.Run("EmptyQuery", func(t *testing.T) {
		assert.Empty(t, ExtractQueryTerms(""))
		assert.Empty(t, ExtractQueryTerms("the and for"))
	})
}

func TestScore(t *testing.T) {
	t.Run("CoverageAndFrequency", func(t *testing.T) {
		terms := ExtractQueryTerms("board meeting")
		require.Len(t, terms, 8)

		text := "Regular meetings of the board shall be held monthly."
		score, matched := Score(text, terms)

		// Matches: board, meeting (inside "meetings"), meetings.
		assert.ElementsMatch(t, []string{"board", "meeting", "meetings"}, matched)
		// coverage 3/8, frequency 3/10.
		assert.InDelta(t, 0.7*(3.0/8.0)+0.3*(3.0/10.0), score, 1e-9)
	})

	t.Run("BoundedToUnitInterval", func(t *testing.T) {
		terms := []string{"word"}
		text := strings.Repeat("word ", 50)
		score, matched := Score(text, terms)
		assert.Equal(t, []string{"word"}, matched)
		assert.InDelta(t, 1.0, score, 1e-9)
	})

	t.Run("SubstringMatching", func(t *testing.T) {
		// Occurrences are substring counts, so "board" matches inside
		// "boarding" as well.
		score, matched := Score("boarding passes are issued at the gate", []string{"board"})
		assert.Greater(t, score, 0.0)
		assert.Equal(t, []string{"board"}, matched)
	})

	t.Run("NoMatch", func(t *testing.T) {
		score, matched := Score("completely unrelated text", []string{"quorum"})
		assert.Zero(t, score)
		assert.Empty(t, matched)
	})

	t.Run("EmptyInputs", func(t *testing.T) {
		score, matched := Score("", []string{"board"})
		assert.Zero(t, score)
		assert.Empty(t, matched)

		score, matched = Score("text", nil)
		assert.Zero(t, score)
		assert.Empty(t, matched)
	})

	t.Run("CoverageDominatesFrequency", func(t *testing.T) {
		terms := []string{"quorum", "majority"}
		broad, _ := Score("a quorum requires a majority", terms)
		deep, _ := Score(strings.Repeat("quorum ", 10), terms)
		assert.Greater(t, broad, deep,
			"matching every term once outranks matching one term often")
	})
}

func TestDedupeResults(t *testing.T) {
	mk := func(content string, score float64) *ScoredResult {
		return &ScoredResult{
			Chunk: &DocumentChunk{ID: chunkID(content), Content: content},
			Score: score,
		}
	}

	t.Run("NearDuplicateDropped", func(t *testing.T) {
		results := []*ScoredResult{
			mk("the board meets monthly at the principal office", 0.9),
			mk("the board meets monthly at the principal office today", 0.8),
			mk("annual dues are payable in January", 0.7),
		}
		kept := dedupeResults(results)
		require.Len(t, kept, 2)
		assert.Equal(t, 0.9, kept[0].Score, "the earlier result wins")
		assert.Equal(t, 0.7, kept[1].Score)
	})

	t.Run("DistinctContentKept", func(t *testing.T) {
		results := []*ScoredResult{
			mk("the board meets monthly", 0.9),
			mk("annual dues are payable in January", 0.8),
		}
		assert.Len(t, dedupeResults(results), 2)
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Empty(t, dedupeResults(nil))
	})
}

func TestWordSetOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, wordSetOverlap("a b c", "c b a"), 1e-9)
	assert.Zero(t, wordSetOverlap("a b", "c d"))
	assert.InDelta(t, 0.5, wordSetOverlap("a b c", "b c d"), 1e-9)
	assert.Zero(t, wordSetOverlap("", ""))
}
