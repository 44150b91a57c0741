// Package loader abstracts where document text comes from. A GraphFile
// names a document source; a GraphFileLoader turns it into raw text ready
// for chunking and extraction. Loaders can wrap each other, so a format
// parser (PDF, Word) can sit on top of any byte source (filesystem, S3,
// web).
package loader

import (
	"context"
	"path/filepath"
	"strings"
)

// GraphFile represents a document to be processed into graph records.
// Path is interpreted by the loader: a filesystem path, an object key,
// or a URL.
type GraphFile struct {
	ID     string
	Path   string
	Loader GraphFileLoader
}

// GetText retrieves the raw text content of the file using its Loader.
func (f *GraphFile) GetText(ctx context.Context) ([]byte, error) {
	return f.Loader.GetFileText(ctx, *f)
}

// GraphFileLoader defines the interface for loading the contents of a
// GraphFile. Implementations may load from disk, object storage, or the
// web, and may delegate to another loader for the raw bytes.
type GraphFileLoader interface {
	GetFileText(ctx context.Context, file GraphFile) ([]byte, error)
}

// CacheKey identifies a file for loader-level caching.
func CacheKey(file GraphFile) string {
	return file.ID + ":" + file.Path
}

// FormatFor reports the parser a path needs based on its extension:
// "pdf", "docx", or "" for plain text.
func FormatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "pdf"
	case ".docx", ".doc":
		return "docx"
	default:
		return ""
	}
}
