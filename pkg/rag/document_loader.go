package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// DocumentLoaderConfig holds configuration for the document loader.
type DocumentLoaderConfig struct {
	SupportedFormats []string `yaml:"supported_formats" json:"supported_formats"`
	MaxFileSize      int64    `yaml:"max_file_size" json:"max_file_size"`
}

func getDefaultLoaderConfig() *DocumentLoaderConfig {
	return &DocumentLoaderConfig{
		SupportedFormats: []string{".txt", ".md", ".pdf"},
		MaxFileSize:      64 << 20,
	}
}

// DocumentLoader reads source documents from the local filesystem. Loaded
// documents are cached by path and invalidated on modification time.
type DocumentLoader struct {
	config *DocumentLoaderConfig
	logger *slog.Logger

	mutex sync.RWMutex
	cache map[string]*Document
}

// NewDocumentLoader creates a loader. A nil config uses defaults.
func NewDocumentLoader(config *DocumentLoaderConfig) *DocumentLoader {
	if config == nil {
		config = getDefaultLoaderConfig()
	}

	return &DocumentLoader{
		config: config,
		logger: slog.Default().With("component", "document-loader"),
		cache:  make(map[string]*Document),
	}
}

// LoadDocument reads a single file into a Document. Unreadable or oversized
// files return an error; the orchestrator converts loader errors into an
// empty result set.
func (dl *DocumentLoader) LoadDocument(ctx context.Context, path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat document: %w", err)
	}
	if info.Size() > dl.config.MaxFileSize {
		return nil, fmt.Errorf("document %s exceeds max file size (%d bytes)", path, info.Size())
	}
	if !dl.isSupportedFile(path) {
		return nil, fmt.Errorf("unsupported document format: %s", filepath.Ext(path))
	}

	if doc := dl.getCached(path, info.ModTime()); doc != nil {
		return doc, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	var content string
	pageCount := 0

	switch ext {
	case ".pdf":
		content, pageCount, err = extractPDFText(ctx, path)
	default:
		var raw []byte
		raw, err = os.ReadFile(path)
		content = string(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}

	content = cleanTextContent(content)
	doc := &Document{
		ID:      uuid.NewString(),
		Source:  path,
		Title:   extractTitle(content, filepath.Base(path)),
		Content: content,
		Metadata: &DocumentMetadata{
			Filename:   filepath.Base(path),
			FileHash:   contentHash(content),
			SizeBytes:  info.Size(),
			WordCount:  countWords(content),
			PageCount:  pageCount,
			Format:     strings.TrimPrefix(ext, "."),
			LoadedAt:   time.Now(),
			ModifiedAt: info.ModTime(),
		},
	}

	dl.setCached(path, doc)
	dl.logger.Info("Document loaded",
		"source", path,
		"format", doc.Metadata.Format,
		"words", doc.Metadata.WordCount,
		"pages", pageCount,
	)

	return doc, nil
}

// LoadDirectory walks a directory and loads every supported file.
func (dl *DocumentLoader) LoadDirectory(ctx context.Context, dir string) ([]*Document, error) {
	var docs []*Document

	err := filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() || !dl.isSupportedFile(path) {
			return nil
		}

		doc, err := dl.LoadDocument(ctx, path)
		if err != nil {
			dl.logger.Warn("Skipping unreadable document", "path", path, "error", err)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	dl.logger.Info("Directory loaded", "dir", dir, "documents", len(docs))
	return docs, nil
}

func (dl *DocumentLoader) isSupportedFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range dl.config.SupportedFormats {
		if ext == supported {
			return true
		}
	}
	return false
}

func (dl *DocumentLoader) getCached(path string, modTime time.Time) *Document {
	dl.mutex.RLock()
	defer dl.mutex.RUnlock()

	doc, ok := dl.cache[path]
	if !ok || doc.Metadata == nil || doc.Metadata.ModifiedAt.Before(modTime) {
		return nil
	}
	return doc
}

func (dl *DocumentLoader) setCached(path string, doc *Document) {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	dl.cache[path] = doc
}

// PDFPages returns the plain text of each page of a PDF file, 1-based page
// order preserved. Pages that fail extraction become empty strings. The
// orchestrator's PDF-direct stage uses per-page text to attach page metadata.
func PDFPages(ctx context.Context, path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF: %w", err)
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("Failed to extract PDF page text", "path", path, "page", i, "error", err)
			text = ""
		}
		pages = append(pages, text)
	}

	return pages, nil
}

// extractPDFText pulls plain text from every page of a PDF file.
func extractPDFText(ctx context.Context, path string) (string, int, error) {
	pages, err := PDFPages(ctx, path)
	if err != nil {
		return "", 0, err
	}
	return strings.Join(pages, "\n"), len(pages), nil
}

var excessBlankLines = regexp.MustCompile(`\n{3,}`)

// cleanTextContent normalizes line endings and collapses runs of blank lines
// while preserving paragraph breaks, which the chunker relies on.
func cleanTextContent(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = excessBlankLines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

// extractTitle picks the first short non-empty line as the document title,
// falling back to the filename.
func extractTitle(content, filename string) string {
	for _, line := range strings.SplitN(content, "\n", 10) {
		line = strings.TrimSpace(line)
		if line != "" && len(line) <= 120 {
			return line
		}
	}
	return filename
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
