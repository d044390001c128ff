// Package index fetches the prebuilt search index artifact and keeps a single
// immutable copy of it for the lifetime of the process.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sha1n/mcp-docsearch-server/internal/domain"
)

const (
	// DefaultFetchTimeout bounds a single fetch attempt.
	DefaultFetchTimeout = 30 * time.Second

	loadKey   = "load"
	reloadKey = "reload"
)

// ErrIndexUnavailable is returned when the index cannot be fetched or parsed.
var ErrIndexUnavailable = errors.New("search index unavailable")

// Stats describes the loader state.
type Stats struct {
	Source        string    `json:"source"`
	Loaded        bool      `json:"loaded"`
	Fetches       int64     `json:"fetches"`
	Chunks        int       `json:"chunks"`
	Pages         int       `json:"pages"`
	HasEmbeddings bool      `json:"hasEmbeddings"`
	GeneratedAt   string    `json:"generatedAt,omitempty"`
	LastLoaded    time.Time `json:"lastLoaded,omitzero"`
	LastError     string    `json:"lastError,omitempty"`
}

// Loader fetches the index from a URL or file on first use.
// Concurrent callers share a single fetch. Failures are not cached.
type Loader struct {
	source  string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
	onLoad  []func(*domain.SearchIndex)

	group   singleflight.Group
	current atomic.Pointer[domain.SearchIndex]
	fetches atomic.Int64

	mu         sync.Mutex
	lastLoaded time.Time
	lastErr    error
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient sets the HTTP client used for remote sources.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		if client != nil {
			l.client = client
		}
	}
}

// WithFetchTimeout bounds each fetch attempt.
func WithFetchTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithLogger sets the loader logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithOnLoad registers a callback invoked after every successful load, before
// waiting callers are released.
func WithOnLoad(fn func(*domain.SearchIndex)) Option {
	return func(l *Loader) {
		if fn != nil {
			l.onLoad = append(l.onLoad, fn)
		}
	}
}

// NewLoader creates a loader for source, which is an http(s) URL, a file://
// URL or a local file path.
func NewLoader(source string, opts ...Option) *Loader {
	l := &Loader{
		source:  source,
		client:  &http.Client{},
		timeout: DefaultFetchTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EnsureLoaded returns the loaded index, fetching it if needed.
// Once loaded, every call returns the same index without I/O.
func (l *Loader) EnsureLoaded(ctx context.Context) (*domain.SearchIndex, error) {
	if idx := l.current.Load(); idx != nil {
		return idx, nil
	}
	return l.do(ctx, loadKey, false)
}

// Reload fetches the index again and replaces the current one on success.
// On failure the previous index stays in place.
func (l *Loader) Reload(ctx context.Context) (*domain.SearchIndex, error) {
	return l.do(ctx, reloadKey, true)
}

// Current returns the loaded index, or nil.
func (l *Loader) Current() *domain.SearchIndex {
	return l.current.Load()
}

// Source returns the configured index location.
func (l *Loader) Source() string {
	return l.source
}

// Stats returns a snapshot of the loader state.
func (l *Loader) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{
		Source:     l.source,
		Fetches:    l.fetches.Load(),
		LastLoaded: l.lastLoaded,
	}
	if l.lastErr != nil {
		s.LastError = l.lastErr.Error()
	}
	if idx := l.current.Load(); idx != nil {
		s.Loaded = true
		s.Chunks = len(idx.Chunks)
		s.Pages = countPages(idx)
		s.HasEmbeddings = idx.HasEmbeddings()
		s.GeneratedAt = idx.Metadata.GeneratedAt
	}
	return s
}

// do runs one shared fetch per key. The fetch is detached from the caller's
// cancellation so that one impatient caller does not fail the others.
func (l *Loader) do(ctx context.Context, key string, force bool) (*domain.SearchIndex, error) {
	ch := l.group.DoChan(key, func() (any, error) {
		if !force {
			if idx := l.current.Load(); idx != nil {
				return idx, nil
			}
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		idx, err := l.fetch(fetchCtx)
		l.record(err)
		if err != nil {
			l.logger.Error("Failed to load search index", "source", l.source, "error", err)
			return nil, err
		}

		l.current.Store(idx)
		for _, fn := range l.onLoad {
			fn(idx)
		}
		return idx, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.SearchIndex), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loader) record(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastErr = err
	if err == nil {
		l.lastLoaded = time.Now()
	}
}

// fetch reads and decodes the index.
func (l *Loader) fetch(ctx context.Context) (*domain.SearchIndex, error) {
	startTime := time.Now()
	l.fetches.Add(1)

	idx, err := l.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	l.checkEmbeddings(idx)

	l.logger.Info("Search index loaded",
		"source", l.source,
		"chunks", len(idx.Chunks),
		"pages", countPages(idx),
		"embeddings", idx.HasEmbeddings(),
		"generated_at", idx.Metadata.GeneratedAt,
		"duration", time.Since(startTime))

	return idx, nil
}

func (l *Loader) read(ctx context.Context) (*domain.SearchIndex, error) {
	if l.source == "" {
		return nil, errors.New("no index source configured")
	}

	if strings.HasPrefix(l.source, "http://") || strings.HasPrefix(l.source, "https://") {
		return l.readHTTP(ctx)
	}

	path := l.source
	if strings.HasPrefix(path, "file://") {
		u, err := url.Parse(path)
		if err != nil {
			return nil, fmt.Errorf("parsing source: %w", err)
		}
		path = u.Path
	}
	return readFile(path)
}

func (l *Loader) readHTTP(ctx context.Context) (*domain.SearchIndex, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching index: status %d", resp.StatusCode)
	}

	var idx domain.SearchIndex
	if err := json.NewDecoder(resp.Body).Decode(&idx); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}
	return &idx, nil
}

func readFile(path string) (*domain.SearchIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer func() { _ = f.Close() }()

	var idx domain.SearchIndex
	if err := json.NewDecoder(f).Decode(&idx); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}
	return &idx, nil
}

// checkEmbeddings warns when chunks disagree on embedding presence or length.
// Such an index still loads; vector mode skips chunks without embeddings.
func (l *Loader) checkEmbeddings(idx *domain.SearchIndex) {
	dims, with, without := 0, 0, 0
	mismatched := 0
	for i := range idx.Chunks {
		n := len(idx.Chunks[i].Embedding)
		switch {
		case n == 0:
			without++
		case dims == 0:
			dims = n
			with++
		default:
			with++
			if n != dims {
				mismatched++
			}
		}
	}

	if with > 0 && without > 0 {
		l.logger.Warn("Search index has chunks without embeddings; they are skipped in vector mode",
			"with_embedding", with, "without_embedding", without)
	}
	if mismatched > 0 {
		l.logger.Warn("Search index has embeddings of differing lengths",
			"dimensions", dims, "mismatched", mismatched)
	}
}

func countPages(idx *domain.SearchIndex) int {
	if idx.Metadata.TotalPages > 0 {
		return idx.Metadata.TotalPages
	}
	pages := make(map[string]struct{})
	for i := range idx.Chunks {
		pages[idx.Chunks[i].PagePath] = struct{}{}
	}
	return len(pages)
}
