// Package doc extracts text from Word documents by parsing the docx XML
// directly.
package doc

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/graphloom/loom/pkg/loader"
)

// DocGraphLoader loads Word documents (.docx) and extracts their text
// content. The wrapped loader supplies the raw document bytes.
type DocGraphLoader struct {
	loader loader.GraphFileLoader

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewDocGraphLoader creates a document loader that extracts text directly
// from docx XML.
func NewDocGraphLoader(source loader.GraphFileLoader) *DocGraphLoader {
	return &DocGraphLoader{
		loader: source,
		cache:  make(map[string][]byte),
	}
}

// GetFileText extracts text content from a Word document.
func (l *DocGraphLoader) GetFileText(ctx context.Context, file loader.GraphFile) ([]byte, error) {
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

		result, err := parseDocx(content)
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

// GetFileTextFromIO extracts text content from a Word document provided as
// an io.Reader.
func GetFileTextFromIO(_ context.Context, input io.Reader) ([]byte, error) {
	content, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}
	return parseDocx(content)
}
