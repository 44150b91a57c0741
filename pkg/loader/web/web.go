// Package web loads document content from web URLs, extracting readable
// article text from HTML pages.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"codeberg.org/readeck/go-readability/v2"
	"golang.org/x/sync/singleflight"

	"github.com/graphloom/loom/pkg/loader"
)

// WebGraphLoader loads content from web URLs. HTML pages go through
// readability so only the main content reaches extraction; other content
// types fall back to the wrapped loader, or to the raw response body.
type WebGraphLoader struct {
	fallback loader.GraphFileLoader

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewWebGraphLoader creates a new web loader without a fallback loader.
func NewWebGraphLoader() *WebGraphLoader {
	return &WebGraphLoader{
		cache: make(map[string][]byte),
	}
}

// NewWebGraphLoaderWithFallback creates a web loader that delegates
// non-HTML content to the given loader.
func NewWebGraphLoaderWithFallback(fallback loader.GraphFileLoader) *WebGraphLoader {
	return &WebGraphLoader{
		fallback: fallback,
		cache:    make(map[string][]byte),
	}
}

// GetFileText fetches a URL and extracts readable text content.
func (l *WebGraphLoader) GetFileText(ctx context.Context, file loader.GraphFile) ([]byte, error) {
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

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Path, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch url: %w", err)
		}
		defer resp.Body.Close()

		result, err := l.extractText(resp, file)
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

func (l *WebGraphLoader) extractText(resp *http.Response, file loader.GraphFile) ([]byte, error) {
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") {
		u, err := url.Parse(file.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse url: %w", err)
		}
		article, err := readability.FromReader(resp.Body, u)
		if err != nil {
			return nil, fmt.Errorf("failed to parse html: %w", err)
		}
		var builder strings.Builder
		if err := article.RenderText(&builder); err != nil {
			return nil, fmt.Errorf("failed to render article text: %w", err)
		}
		return []byte(builder.String()), nil
	}

	if l.fallback != nil {
		return l.fallback.GetFileText(resp.Request.Context(), file)
	}

	return io.ReadAll(resp.Body)
}
