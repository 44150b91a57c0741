// Package pdf extracts text from PDF documents via pdftotext.
package pdf

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/graphloom/loom/pkg/loader"
)

// PDFGraphLoader loads PDF files and extracts their text content. The
// wrapped loader supplies the raw PDF bytes.
type PDFGraphLoader struct {
	loader loader.GraphFileLoader

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewPDFGraphLoader creates a PDF loader that extracts text from PDF
// content supplied by the given byte source.
func NewPDFGraphLoader(source loader.GraphFileLoader) *PDFGraphLoader {
	return &PDFGraphLoader{
		loader: source,
		cache:  make(map[string][]byte),
	}
}

// GetFileText extracts text from a PDF file.
func (l *PDFGraphLoader) GetFileText(ctx context.Context, file loader.GraphFile) ([]byte, error) {
	key := loader.CacheKey(file)

	l.cacheMu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(key, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[key]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		content, err := l.loader.GetFileText(ctx, file)
		if err != nil {
			return nil, err
		}

		result, err := parsePDF(content)
		if err != nil {
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[key] = result
		l.cacheMu.Unlock()

		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}
