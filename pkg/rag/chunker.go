package rag

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ErrInvalidChunkConfig reports a chunk size/overlap combination that cannot
// make forward progress.
var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

const (
	// breakSearchWindow bounds the backward search for a break pattern from
	// the tentative chunk end.
	breakSearchWindow = 300

	// wordSnapRange bounds the scan for a true word boundary around a chosen
	// break offset. When no boundary exists within this range the raw offset
	// is used, accepting a mid-word cut as a last resort.
	wordSnapRange = 50
)

// ChunkOptions controls ChunkText.
type ChunkOptions struct {
	MaxSize              int  `json:"max_size"`
	Overlap              int  `json:"overlap"`
	RespectSectionBreaks bool `json:"respect_section_breaks"`
}

// breakPattern is a candidate break point with a fixed weight. Patterns
// flagged breakBefore cut in front of the match (section headers start the
// next chunk); the rest cut after the match (separators end the current one).
type breakPattern struct {
	re          *regexp.Regexp
	weight      float64
	breakBefore bool
	sectionOnly bool // only considered when RespectSectionBreaks is set
}

var breakPatterns = []breakPattern{
	{regexp.MustCompile(`(?i)\f|\n\s*page\s+\d+\s*\n`), 10, true, true},
	{regexp.MustCompile(`(?im)^ARTICLE\s+[IVXLC]+`), 9, true, true},
	{regexp.MustCompile(`(?m)^[A-Z]\.\s`), 8, true, true},
	{regexp.MustCompile(`(?m)^\d+(?:\.\d+)*[.)]\s`), 7, true, true},
	{regexp.MustCompile(`(?m)^\([a-z]\)\s`), 6, true, true},
	{regexp.MustCompile(`\n\n`), 5, false, false},
	{regexp.MustCompile(`[.!?]\n`), 4, false, false},
	{regexp.MustCompile(`\. [A-Z]`), 3, false, false},
	{regexp.MustCompile(`; `), 2, false, false},
	{regexp.MustCompile(`, `), 1, false, false},
}

// ChunkText splits content into spans of at most MaxSize characters with the
// requested overlap, never cutting inside a word when a boundary can be found
// within wordSnapRange. Break points prefer semantic boundaries found in a
// window behind the target cut. Content no longer than MaxSize is returned
// unchanged as a single chunk.
func ChunkText(content string, opts ChunkOptions) ([]string, error) {
	if opts.MaxSize <= 0 {
		return nil, fmt.Errorf("%w: max size %d must be positive", ErrInvalidChunkConfig, opts.MaxSize)
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.MaxSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunkConfig, opts.Overlap, opts.MaxSize)
	}

	if len(content) <= opts.MaxSize {
		return []string{content}, nil
	}

	var chunks []string
	start := 0

	for start < len(content) {
		if start+opts.MaxSize >= len(content) {
			if tail := strings.TrimSpace(content[start:]); tail != "" {
				chunks = append(chunks, tail)
			}
			break
		}

		tentativeEnd := start + opts.MaxSize
		breakAt := findBreakPoint(content, start, tentativeEnd, opts.RespectSectionBreaks)
		breakAt = snapToWordBoundary(content, breakAt)

		if piece := strings.TrimSpace(content[start:breakAt]); piece != "" {
			chunks = append(chunks, piece)
		}

		next := breakAt - opts.Overlap
		if next <= start {
			next = start + 1
		}
		snapped := snapToWordStart(content, next)
		if snapped <= start {
			snapped = next
		}
		start = snapped
	}

	return chunks, nil
}

// findBreakPoint searches backward from the tentative end, within the bounded
// window, for the break pattern occurrence whose weighted score (pattern
// weight x proximity-to-target factor) is highest. When no pattern occurs in
// the window the tentative end itself is returned.
func findBreakPoint(content string, start, tentativeEnd int, respectSections bool) int {
	windowStart := tentativeEnd - breakSearchWindow
	if windowStart < start {
		windowStart = start
	}
	window := content[windowStart:tentativeEnd]

	best := tentativeEnd
	bestScore := 0.0

	for _, bp := range breakPatterns {
		if bp.sectionOnly && !respectSections {
			continue
		}
		for _, loc := range bp.re.FindAllStringIndex(window, -1) {
			var cut int
			if bp.breakBefore {
				cut = windowStart + loc[0]
			} else {
				cut = windowStart + loc[1]
			}
			if cut <= start || cut > tentativeEnd {
				continue
			}

			proximity := 1.0 - float64(tentativeEnd-cut)/float64(breakSearchWindow)
			if proximity < 0 {
				proximity = 0
			}
			score := bp.weight * proximity
			if score > bestScore {
				bestScore = score
				best = cut
			}
		}
	}

	return best
}

// isWordChar reports whether c is part of a word: a boundary is any
// whitespace or punctuation character.
func isWordChar(c byte) bool {
	r := rune(c)
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// boundaryAt reports whether cutting at pos does not straddle two word
// characters.
func boundaryAt(content string, pos int) bool {
	if pos <= 0 || pos >= len(content) {
		return true
	}
	return !isWordChar(content[pos-1]) || !isWordChar(content[pos])
}

// snapToWordBoundary moves pos to the nearest true word boundary, scanning at
// most wordSnapRange characters backward then forward. If neither direction
// yields a boundary the original offset is returned as-is.
func snapToWordBoundary(content string, pos int) int {
	if boundaryAt(content, pos) {
		return pos
	}
	for d := 1; d <= wordSnapRange; d++ {
		if p := pos - d; p > 0 && boundaryAt(content, p) {
			return p
		}
	}
	for d := 1; d <= wordSnapRange; d++ {
		if p := pos + d; p < len(content) && boundaryAt(content, p) {
			return p
		}
	}
	return pos
}

// snapToWordStart adjusts a chunk start so it does not begin mid-word: it
// backs up to the start of the word at pos, or failing that scans forward to
// the next word start.
func snapToWordStart(content string, pos int) int {
	if pos >= len(content) || boundaryAt(content, pos) {
		return pos
	}
	for d := 1; d <= wordSnapRange; d++ {
		if p := pos - d; p >= 0 && boundaryAt(content, p) {
			return p
		}
	}
	for d := 1; d <= wordSnapRange; d++ {
		if p := pos + d; p < len(content) && boundaryAt(content, p) {
			return p
		}
	}
	return pos
}
