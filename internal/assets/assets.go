// Package assets fetches the map library and plugin bundles from their CDN
// once and serves them to the browser page from memory.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/joeblew999/plat-mapbridge/internal/logging"
	"github.com/joeblew999/plat-mapbridge/internal/model"
)

// Error codes.
const (
	CodeUnknownAsset = "UNKNOWN_ASSET"
	CodeFetchFailed  = "ASSET_FETCH_FAILED"
)

const maxAssetSize = 16 << 20

// Asset is a fetched bundle.
type Asset struct {
	Name        string
	URL         string
	ContentType string
	Body        []byte
	Fetched     time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithHTTPClient sets the client used for fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(cache *Cache) { cache.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cache *Cache) { cache.logger = l }
}

// WithRetry sets how many times a failed fetch is tried and the base of the
// exponential backoff between tries.
func WithRetry(attempts uint64, base time.Duration) Option {
	return func(cache *Cache) {
		cache.attempts = max(attempts, 1)
		cache.backoff = base
	}
}

// WithTimeout bounds each fetch attempt.
func WithTimeout(d time.Duration) Option {
	return func(cache *Cache) { cache.timeout = d }
}

// Cache holds fetched assets by name. Concurrent requests for the same
// missing asset share one fetch; failed fetches are not cached.
type Cache struct {
	sources  map[string]string
	client   *http.Client
	logger   *slog.Logger
	attempts uint64
	backoff  time.Duration
	timeout  time.Duration

	flights singleflight.Group
	mu      sync.RWMutex
	items   map[string]*Asset
}

// New creates a cache for the given name to URL table.
func New(sources map[string]string, opts ...Option) *Cache {
	c := &Cache{
		sources:  make(map[string]string, len(sources)),
		client:   http.DefaultClient,
		logger:   logging.Discard(),
		attempts: 3,
		backoff:  200 * time.Millisecond,
		timeout:  30 * time.Second,
		items:    make(map[string]*Asset),
	}
	for name, url := range sources {
		c.sources[name] = url
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Names returns the configured asset names, sorted.
func (c *Cache) Names() []string {
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is configured.
func (c *Cache) Has(name string) bool {
	_, ok := c.sources[name]
	return ok
}

// Cached reports whether name has been fetched.
func (c *Cache) Cached(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[name]
	return ok
}

// Get returns the named asset, fetching it on first use.
func (c *Cache) Get(ctx context.Context, name string) (*Asset, error) {
	url, ok := c.sources[name]
	if !ok {
		return nil, oops.Code(CodeUnknownAsset).With("asset", name).Errorf("unknown asset %q", name)
	}

	c.mu.RLock()
	a, ok := c.items[name]
	c.mu.RUnlock()
	if ok {
		return a, nil
	}

	ch := c.flights.DoChan(name, func() (any, error) {
		a, err := c.fetch(context.WithoutCancel(ctx), name, url)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.items[name] = a
		c.mu.Unlock()
		return a, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Asset), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Prefetch fetches the named assets concurrently.
func (c *Cache) Prefetch(ctx context.Context, names ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			_, err := c.Get(ctx, name)
			return err
		})
	}
	return g.Wait()
}

func (c *Cache) fetch(ctx context.Context, name, url string) (*Asset, error) {
	start := time.Now()
	b := retry.WithMaxRetries(c.attempts-1, retry.NewExponential(c.backoff))

	var a *Asset
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		var err error
		a, err = c.fetchOnce(ctx, name, url)
		if err != nil && retryable(err) {
			c.logger.Warn("asset fetch failed", "asset", name, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, oops.Code(CodeFetchFailed).With("asset", name, "url", url, "attempts", attempt).Wrapf(err, "fetch asset %s", name)
	}
	c.logger.Info("asset fetched", "asset", name, "bytes", len(a.Body), "duration", time.Since(start))
	return a, nil
}

type statusError struct {
	status int
}

func (e *statusError) Error() string { return fmt.Sprintf("unexpected status %d", e.status) }

func retryable(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.status >= 500 || se.status == http.StatusTooManyRequests
	}
	return true
}

func (c *Cache) fetchOnce(ctx context.Context, name, url string) (*Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize))
	if err != nil {
		return nil, err
	}
	return &Asset{
		Name:        name,
		URL:         url,
		ContentType: contentType(name, resp.Header.Get("Content-Type")),
		Body:        body,
		Fetched:     time.Now(),
	}, nil
}

func contentType(name, header string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	if header != "" {
		return header
	}
	return "application/octet-stream"
}

// ServeHTTP serves an asset by the last path element of the request URL.
func (c *Cache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Base(r.URL.Path)
	if !c.Has(name) {
		http.NotFound(w, r)
		return
	}
	a, err := c.Get(r.Context(), name)
	if err != nil {
		c.logger.Error("serve asset", "asset", name, "error", err)
		http.Error(w, "asset unavailable", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, a.Name, a.Fetched, bytes.NewReader(a.Body))
}

// Library asset names.
const (
	LibraryJS  = "mapbox-gl.js"
	LibraryCSS = "mapbox-gl.css"
)

// LibraryAssets returns the names of the core library bundle.
func LibraryAssets() []string { return []string{LibraryCSS, LibraryJS} }

// PluginAssets returns the names of a plugin's bundle, stylesheet first.
func PluginAssets(kind model.PluginKind) []string {
	base := "mapbox-gl-" + string(kind)
	return []string{base + ".css", base + ".js"}
}

// DefaultSources returns the CDN locations of the library and its plugins.
func DefaultSources() map[string]string {
	const cdn = "https://api.mapbox.com/mapbox-gl-js"
	return map[string]string{
		LibraryCSS:                 cdn + "/v3.0.1/mapbox-gl.css",
		LibraryJS:                  cdn + "/v3.0.1/mapbox-gl.js",
		"mapbox-gl-geocoder.css":   cdn + "/plugins/mapbox-gl-geocoder/v5.0.0/mapbox-gl-geocoder.css",
		"mapbox-gl-geocoder.js":    cdn + "/plugins/mapbox-gl-geocoder/v5.0.0/mapbox-gl-geocoder.min.js",
		"mapbox-gl-draw.css":       cdn + "/plugins/mapbox-gl-draw/v1.4.0/mapbox-gl-draw.css",
		"mapbox-gl-draw.js":        cdn + "/plugins/mapbox-gl-draw/v1.4.0/mapbox-gl-draw.js",
		"mapbox-gl-directions.css": cdn + "/plugins/mapbox-gl-directions/v4.1.1/mapbox-gl-directions.css",
		"mapbox-gl-directions.js":  cdn + "/plugins/mapbox-gl-directions/v4.1.1/mapbox-gl-directions.js",
		"mapbox-gl-compare.css":    cdn + "/plugins/mapbox-gl-compare/v0.4.0/mapbox-gl-compare.css",
		"mapbox-gl-compare.js":     cdn + "/plugins/mapbox-gl-compare/v0.4.0/mapbox-gl-compare.js",
	}
}
