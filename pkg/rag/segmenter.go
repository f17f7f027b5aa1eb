package rag

import (
	"regexp"
	"sort"
	"strings"
)

// minSectionContent is the smallest span kept by the segmenter. Shorter spans
// are noise, typically an empty heading followed immediately by another
// heading.
const minSectionContent = 50

// maxChunkKeywords caps the keyword list extracted per chunk.
const maxChunkKeywords = 10

// markerPattern binds a heading regex to the element kind it detects. The
// hierarchy level is a fixed lookup per kind.
type markerPattern struct {
	re   *regexp.Regexp
	kind ElementKind
}

// elementLevels maps element kinds to hierarchy levels (lower = higher).
var elementLevels = map[ElementKind]int{
	ElementArticle:    1,
	ElementChapter:    1,
	ElementAbstract:   1,
	ElementSection:    2,
	ElementSubsection: 3,
	ElementStep:       3,
	ElementClause:     4,
}

// segmentPatterns is the strategy table dispatching document types to their
// ordered marker pattern lists. Types without an entry cannot be segmented
// and the caller falls back to plain chunking.
var segmentPatterns = map[DocumentType][]markerPattern{
	DocTypeLegal: {
		{regexp.MustCompile(`(?im)^ARTICLE\s+[IVXLC]+\.?[^\n]*`), ElementArticle},
		{regexp.MustCompile(`(?im)^Section\s+\d+(?:\.\d+)*\.?[^\n]*`), ElementSection},
		{regexp.MustCompile(`(?im)^Subsection\s+\d+(?:\.\d+)*\.?[^\n]*`), ElementSubsection},
		{regexp.MustCompile(`(?m)^\([a-z]\)\s+[^\n]*`), ElementClause},
	},
	DocTypeTechnical: {
		{regexp.MustCompile(`(?im)^Chapter\s+\d+\.?[^\n]*`), ElementChapter},
		{regexp.MustCompile(`(?m)^\d+\.\s+\S[^\n]*`), ElementSection},
		{regexp.MustCompile(`(?m)^\d+\.\d+(?:\.\d+)*\.?\s+\S[^\n]*`), ElementSubsection},
		{regexp.MustCompile(`(?im)^Step\s+\d+\s*[:.][^\n]*`), ElementStep},
	},
	DocTypeAcademic: {
		{regexp.MustCompile(`(?im)^Abstract\s*:?[ \t]*$`), ElementAbstract},
		{regexp.MustCompile(`(?im)^(?:Introduction|Background|Methodology|Results|Discussion|Conclusion|References)\s*$`), ElementSection},
		{regexp.MustCompile(`(?m)^\d+\.?\s+[A-Z][^\n]*`), ElementSection},
		{regexp.MustCompile(`(?m)^\d+\.\d+(?:\.\d+)*\.?\s+\S[^\n]*`), ElementSubsection},
	},
}

// ExtractElements locates all hierarchy markers registered for the document
// type, in document order. Markers from different pattern groups are
// interleaved by position; a marker overlapping the previous one is dropped.
func ExtractElements(content string, docType DocumentType) []StructureElement {
	patterns, ok := segmentPatterns[docType]
	if !ok {
		return nil
	}

	var elements []StructureElement
	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(content, -1) {
			elements = append(elements, StructureElement{
				Start: loc[0],
				End:   loc[1],
				Title: strings.TrimSpace(content[loc[0]:loc[1]]),
				Kind:  p.kind,
				Level: elementLevels[p.kind],
			})
		}
	}

	sort.SliceStable(elements, func(i, j int) bool {
		if elements[i].Start != elements[j].Start {
			return elements[i].Start < elements[j].Start
		}
		return elements[i].End > elements[j].End
	})

	// Drop markers that overlap an earlier marker's span.
	deduped := elements[:0]
	lastEnd := -1
	for _, el := range elements {
		if el.Start < lastEnd {
			continue
		}
		deduped = append(deduped, el)
		lastEnd = el.End
	}

	return deduped
}

// Segment cuts a document into chunks between consecutive structure markers.
// It returns nil when the type has no pattern table or no markers are found;
// the caller must then fall back to ChunkText over the whole document.
func Segment(content string, docType DocumentType) []*DocumentChunk {
	elements := ExtractElements(content, docType)
	if len(elements) == 0 {
		return nil
	}

	var chunks []*DocumentChunk
	for i, el := range elements {
		spanStart := el.End
		spanEnd := len(content)
		if i+1 < len(elements) {
			spanEnd = elements[i+1].Start
		}

		text := strings.TrimSpace(content[spanStart:spanEnd])
		if len(text) < minSectionContent {
			continue
		}

		path := hierarchyPath(elements, i)
		chunk := &DocumentChunk{
			ID:             chunkID(text),
			Content:        text,
			DocumentType:   docType,
			SectionTitle:   el.Title,
			HierarchyPath:  path,
			HierarchyLevel: el.Level,
			Keywords:       extractKeywords(text),
			StartOffset:    spanStart,
			EndOffset:      spanEnd,
			WordCount:      countWords(text),
		}
		if len(path) > 1 {
			chunk.ParentContext = strings.Join(path[:len(path)-1], " > ")
		}
		chunks = append(chunks, chunk)
	}

	return chunks
}

// hierarchyPath builds the ancestor chain for element i by scanning backward
// for the nearest preceding element with a strictly smaller level, repeating
// until level 1 or the start of the document. The result lists the most
// distant ancestor first and element i's own title last.
func hierarchyPath(elements []StructureElement, i int) []string {
	path := []string{elements[i].Title}
	level := elements[i].Level

	for j := i - 1; j >= 0 && level > 1; j-- {
		if elements[j].Level < level {
			path = append([]string{elements[j].Title}, path...)
			level = elements[j].Level
		}
	}

	return path
}

// keywordStopwords excludes modal and filler vocabulary from chunk keywords.
var keywordStopwords = map[string]bool{
	"shall": true, "will": true, "must": true, "should": true, "might": true,
	"that": true, "this": true, "with": true, "from": true, "have": true,
	"been": true, "were": true, "their": true, "they": true, "which": true,
	"would": true, "there": true, "these": true, "those": true, "upon": true,
	"such": true, "other": true, "than": true, "them": true, "then": true,
	"when": true, "where": true, "also": true, "each": true, "into": true,
	"only": true, "more": true, "some": true, "time": true, "what": true,
}

var keywordToken = regexp.MustCompile(`[a-z]{4,}`)

// extractKeywords pulls lowercase alphabetic tokens of length >= 4, drops
// stopwords, dedupes, caps the list, and sorts alphabetically so output is
// reproducible across runs.
func extractKeywords(text string) []string {
	seen := make(map[string]bool)
	var keywords []string

	for _, tok := range keywordToken.FindAllString(strings.ToLower(text), -1) {
		if keywordStopwords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		keywords = append(keywords, tok)
		if len(keywords) == maxChunkKeywords {
			break
		}
	}

	sort.Strings(keywords)

	return keywords
}
