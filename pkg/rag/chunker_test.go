package rag

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextValidation(t *testing.T) {
	t.Run("ZeroMaxSize", func(t *testing.T) {
		_, err := ChunkText("content", ChunkOptions{MaxSize: 0})
		assert.ErrorIs(t, err, ErrInvalidChunkConfig)
	})

	t.Run("NegativeOverlap", func(t *testing.T) {
		_, err := ChunkText("content", ChunkOptions{MaxSize: 100, Overlap: -1})
		assert.ErrorIs(t, err, ErrInvalidChunkConfig)
	})

	t.Run("OverlapAtLeastMaxSize", func(t *testing.T) {
		_, err := ChunkText("content", ChunkOptions{MaxSize: 100, Overlap: 100})
		assert.ErrorIs(t, err, ErrInvalidChunkConfig)
	})
}

func TestChunkText(t *testing.T) {
	t.Run("SmallContentPassesThrough", func(t *testing.T) {
		content := "A short note that fits in one chunk."
		chunks, err := ChunkText(content, ChunkOptions{MaxSize: 1500, Overlap: 200})
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, content, chunks[0])
	})

	t.Run("UniformContentChunkCount", func(t *testing.T) {
		// 3500 characters of uniform words with max 1500 and overlap 500
		// produce exactly three chunks: cuts at 1500 and 2500 plus the tail.
		content := strings.Repeat("word ", 700)
		require.Len(t, content, 3500)

		chunks, err := ChunkText(content, ChunkOptions{MaxSize: 1500, Overlap: 500})
		require.NoError(t, err)
		require.Len(t, chunks, 3)

		for _, chunk := range chunks {
			assert.LessOrEqual(t, len(chunk), 1500)
			assert.True(t, strings.HasPrefix(chunk, "word"))
			assert.True(t, strings.HasSuffix(chunk, "word"))
		}
	})

	t.Run("NeverCutsMidWord", func(t *testing.T) {
		content := strings.TrimSpace(strings.Repeat(
			"The association maintains the common areas. Every member pays annual dues; late payments accrue interest. ", 40))

		chunks, err := ChunkText(content, ChunkOptions{MaxSize: 400, Overlap: 80})
		require.NoError(t, err)
		require.NotEmpty(t, chunks)

		for _, chunk := range chunks {
			first := rune(chunk[0])
			last := rune(chunk[len(chunk)-1])
			assert.False(t, unicode.IsSpace(first))
			assert.False(t, unicode.IsSpace(last))
			// Every chunk is a trimmed substring of the original, so a chunk
			// boundary inside a word would leave a fragment not present as a
			// whole word. Check the cheap invariant: the chunk occurs verbatim.
			assert.Contains(t, content, chunk)
		}
	})

	t.Run("ZeroOverlap", func(t *testing.T) {
		content := strings.Repeat("word ", 100) // 500 chars
		chunks, err := ChunkText(content, ChunkOptions{MaxSize: 200, Overlap: 0})
		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		for _, chunk := range chunks {
			assert.LessOrEqual(t, len(chunk), 200)
		}
	})

	t.Run("PrefersParagraphBreaks", func(t *testing.T) {
		para := strings.Repeat("alpha beta gamma delta epsilon. ", 8) // 256 chars
		content := para + "\n\n" + para + "\n\n" + para

		chunks, err := ChunkText(content, ChunkOptions{MaxSize: 300, Overlap: 0})
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(chunks), 2)
		// The first cut lands on the paragraph break rather than mid-sentence.
		assert.Equal(t, strings.TrimSpace(para), chunks[0])
	})

	t.Run("SectionBreaksOnlyWhenRequested", func(t *testing.T) {
		body := strings.Repeat("covenant enforcement detail ", 10)
		content := body + "\nARTICLE II. ASSESSMENTS\n" + body + body

		withSections, err := ChunkText(content, ChunkOptions{MaxSize: 320, Overlap: 0, RespectSectionBreaks: true})
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(withSections), 2)
		assert.True(t, strings.HasPrefix(withSections[1], "ARTICLE II."),
			"section-aware chunking starts the next chunk at the heading")
	})

	t.Run("ForwardProgressOnBoundarylessInput", func(t *testing.T) {
		// A single unbroken run of letters defeats every break pattern and
		// word boundary; chunking must still terminate.
		content := strings.Repeat("x", 5000)
		chunks, err := ChunkText(content, ChunkOptions{MaxSize: 1000, Overlap: 100})
		require.NoError(t, err)
		assert.NotEmpty(t, chunks)
	})
}
