package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "courtavail/internal/log"
)

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// cachedGetter fetches URLs with HTTP caching (ETag / Last-Modified) and a
// disk-backed body cache. When the network fails or the server answers
// with an error, the last cached body is served instead.
type cachedGetter struct {
	client   *http.Client
	cacheDir string
}

func newCachedGetter(cacheDir string, timeout time.Duration) *cachedGetter {
	if cacheDir == "" {
		// Fall back to a relative dir so that development runs without
		// root permissions.
		cacheDir = "./cache/http-cache"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &cachedGetter{
		client:   &http.Client{Timeout: timeout},
		cacheDir: cacheDir,
	}
}

// Get returns the body of url and whether it came from the cache.
func (g *cachedGetter) Get(ctx context.Context, url string) ([]byte, bool, error) {
	if url == "" {
		return nil, false, errors.New("source URL is empty")
	}

	cachePath := g.cachePathForURL(url)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return nil, false, err
	}

	meta, _ := g.loadCacheMeta(cachePath)
	cachedBody, _ := g.loadCacheBody(cachePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}

	// Conditional headers from cache metadata.
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Info("feed fetch start", "url", redactURL(url))

	resp, err := g.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("feed fetch network error, using cached body", err, "url", redactURL(url))
			return cachedBody, true, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, false, readErr
		}

		newMeta := cacheEntry{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := g.saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("feed cache save failed", err, "url", redactURL(url))
		}

		appLog.Info("feed fetch success", "url", redactURL(url), "status", resp.StatusCode, "bytes", len(body))
		return body, false, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return nil, false, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("feed not modified; using cache", "url", redactURL(url))
		return cachedBody, true, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("feed fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(url), "status", resp.StatusCode)
			return cachedBody, true, nil
		}
		return nil, false, fmt.Errorf("fetch %s: %s", redactURL(url), resp.Status)
	}
}

func (g *cachedGetter) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	// Use first 16 hex chars as directory name.
	return filepath.Join(g.cacheDir, hex.EncodeToString(sum[:8]))
}

func (g *cachedGetter) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (g *cachedGetter) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body"))
}

func (g *cachedGetter) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL hides paths and query strings of feed URLs in logs.
// Example:
//
//	https://example.com/path/to/private.ics?token=abcd -> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "feed://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
