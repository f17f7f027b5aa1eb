package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DocumentType classifies the structural template of a document.
type DocumentType string

const (
	DocTypeLegal        DocumentType = "legal"
	DocTypeTechnical    DocumentType = "technical"
	DocTypeAcademic     DocumentType = "academic"
	DocTypeUnstructured DocumentType = "unstructured"
)

// ElementKind identifies the kind of structural marker found in a document.
type ElementKind string

const (
	ElementArticle    ElementKind = "article"
	ElementChapter    ElementKind = "chapter"
	ElementAbstract   ElementKind = "abstract"
	ElementSection    ElementKind = "section"
	ElementSubsection ElementKind = "subsection"
	ElementStep       ElementKind = "step"
	ElementClause     ElementKind = "clause"
)

// Document is an immutable unit of source text plus its origin.
type Document struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"` // filename or path the content was read from
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Metadata *DocumentMetadata `json:"metadata,omitempty"`
}

// DocumentMetadata carries loader-derived information about a document.
type DocumentMetadata struct {
	Filename   string    `json:"filename"`
	FileHash   string    `json:"file_hash"`
	SizeBytes  int64     `json:"size_bytes"`
	WordCount  int       `json:"word_count"`
	PageCount  int       `json:"page_count,omitempty"`
	Format     string    `json:"format"` // txt, md, pdf
	LoadedAt   time.Time `json:"loaded_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// StructureElement is a detected hierarchy marker. Elements are produced and
// consumed within a single segmentation pass.
type StructureElement struct {
	Start int         `json:"start"` // offset of the marker text
	End   int         `json:"end"`   // offset just past the marker text
	Title string      `json:"title"`
	Kind  ElementKind `json:"kind"`
	Level int         `json:"level"` // lower = higher in the hierarchy
}

// DocumentChunk is a contiguous span of document text with its structural
// context. Chunks are never mutated after creation; re-splitting a chunk
// produces new chunk objects.
type DocumentChunk struct {
	ID             string            `json:"id"` // content hash
	DocumentID     string            `json:"document_id,omitempty"`
	Content        string            `json:"content"`
	DocumentType   DocumentType      `json:"document_type"`
	SectionTitle   string            `json:"section_title,omitempty"`
	HierarchyPath  []string          `json:"hierarchy_path,omitempty"` // most distant ancestor first, own title last
	HierarchyLevel int               `json:"hierarchy_level,omitempty"`
	ParentContext  string            `json:"parent_context,omitempty"`
	Keywords       []string          `json:"keywords,omitempty"`
	StartOffset    int               `json:"start_offset"`
	EndOffset      int               `json:"end_offset"`
	WordCount      int               `json:"word_count"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ScoredResult pairs a chunk with its query-dependent relevance.
type ScoredResult struct {
	Chunk        *DocumentChunk `json:"chunk"`
	Score        float64        `json:"score"`
	MatchedTerms []string       `json:"matched_terms,omitempty"`
	Stage        string         `json:"stage,omitempty"` // pipeline stage that produced the result
}

// chunkID derives a stable identifier from chunk content.
func chunkID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:8])
}

// countWords counts whitespace-separated tokens.
func countWords(content string) int {
	return len(strings.Fields(content))
}
