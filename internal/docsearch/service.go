package docsearch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sha1n/mcp-docsearch-server/internal/config"
	"github.com/sha1n/mcp-docsearch-server/internal/domain"
	"github.com/sha1n/mcp-docsearch-server/internal/embedding"
	"github.com/sha1n/mcp-docsearch-server/internal/index"
	"github.com/sha1n/mcp-docsearch-server/internal/search"
)

// EmbeddingStatus describes the query embedding model.
type EmbeddingStatus struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Dimensions   int    `json:"dimensions"`
	Ready        bool   `json:"ready"`
	LoadAttempts int64  `json:"loadAttempts"`
}

// Status is a snapshot of the service state.
type Status struct {
	Ready     bool            `json:"ready"`
	Index     index.Stats     `json:"index"`
	Embedding EmbeddingStatus `json:"embedding"`
}

// Service coordinates index loading, query embedding, ranking and the page
// catalog. One instance is created at startup and shared by every transport.
type Service struct {
	settings *config.Settings
	loader   *index.Loader
	embedder *embedding.ModelEmbedder
	engine   *search.Engine
	catalog  *Catalog
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger     *slog.Logger
	httpClient *http.Client
	provider   embedding.Provider
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithHTTPClient sets the HTTP client used to fetch the index.
func WithHTTPClient(client *http.Client) ServiceOption {
	return func(o *serviceOptions) {
		o.httpClient = client
	}
}

// WithProvider overrides the embedding provider built from settings.
func WithProvider(provider embedding.Provider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// NewService creates a new docs search service.
func NewService(settings *config.Settings, opts ...ServiceOption) (*Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}

	o := serviceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	provider := o.provider
	if provider == nil {
		p, err := NewProvider(settings.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding provider: %w", err)
		}
		provider = p
	}

	catalog := NewCatalog()
	logger := o.logger

	loader := index.NewLoader(settings.Search.IndexURL,
		index.WithHTTPClient(o.httpClient),
		index.WithFetchTimeout(settings.Search.FetchTimeout),
		index.WithLogger(logger),
		index.WithOnLoad(func(idx *domain.SearchIndex) {
			if err := catalog.Build(idx); err != nil {
				logger.Error("Failed to build page catalog", "error", err)
			}
		}),
	)

	embedder := embedding.NewModelEmbedder(provider,
		embedding.WithFallbackDimensions(settings.Embedding.Dimensions),
		embedding.WithLoadTimeout(settings.Embedding.LoadTimeout),
		embedding.WithCacheSize(settings.Embedding.CacheSize),
		embedding.WithRateLimit(settings.Embedding.RateLimit),
		embedding.WithEmbedderLogger(logger),
	)

	engine, err := search.NewEngine(loader, embedder, search.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create search engine: %w", err)
	}

	return &Service{
		settings: settings,
		loader:   loader,
		embedder: embedder,
		engine:   engine,
		catalog:  catalog,
		logger:   logger,
	}, nil
}

// NewProvider builds the embedding provider named in settings.
// The "none" provider yields nil, which makes every query use the fallback.
func NewProvider(s config.EmbeddingSettings) (embedding.Provider, error) {
	switch s.Provider {
	case config.EmbeddingProviderNone:
		return nil, nil
	case config.EmbeddingProviderOllama, "":
		return embedding.NewOllamaProvider(
			embedding.WithBaseURL(s.BaseURL),
			embedding.WithModel(s.Model),
			embedding.WithDimensions(s.Dimensions),
			embedding.WithTimeout(s.Timeout),
		), nil
	case config.EmbeddingProviderOpenAI:
		p, err := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:     s.APIKey,
			BaseURL:    s.BaseURL,
			Model:      s.Model,
			Dimensions: s.Dimensions,
			HTTPClient: &http.Client{Timeout: s.Timeout},
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", s.Provider)
	}
}

// Initialize warms up the service when preloading is enabled. Failures are
// logged and retried lazily by the first query.
func (s *Service) Initialize(ctx context.Context) error {
	if !s.settings.Search.Preload {
		s.logger.Info("Search index will be loaded on first query", "source", s.loader.Source())
		return nil
	}

	startTime := time.Now()
	if _, err := s.loader.EnsureLoaded(ctx); err != nil {
		s.logger.Warn("Search index preload failed", "error", err)
	}
	if err := s.embedder.Load(ctx); err != nil {
		s.logger.Warn("Embedding model preload failed, queries will use the fallback embedding",
			"model", s.embedder.ModelName(), "error", err)
	}
	s.logger.Info("Preload complete", "ready", s.IsReady(), "duration", time.Since(startTime))
	return nil
}

// IsReady returns true once the index has been loaded.
func (s *Service) IsReady() bool {
	return s.loader.Current() != nil
}

// Search runs a ranked query.
func (s *Service) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	if req.Limit <= 0 {
		req.Limit = s.settings.Search.MaxResults
	}
	return s.engine.Query(ctx, req)
}

// PageChunks returns the chunks of a page in position order.
func (s *Service) PageChunks(ctx context.Context, pagePath, version string) ([]*domain.IndexChunk, error) {
	if err := s.ensureCatalog(ctx); err != nil {
		return nil, err
	}
	return s.catalog.PageChunks(pagePath, version)
}

// Pages lists the documentation pages.
func (s *Service) Pages(ctx context.Context, version, tab string) ([]PageSummary, error) {
	if err := s.ensureCatalog(ctx); err != nil {
		return nil, err
	}
	return s.catalog.Pages(version, tab)
}

// ensureCatalog loads the index if needed and catalogs it.
func (s *Service) ensureCatalog(ctx context.Context) error {
	idx, err := s.loader.EnsureLoaded(ctx)
	if err != nil {
		return err
	}
	return s.catalog.Build(idx)
}

// Reload fetches the index again.
func (s *Service) Reload(ctx context.Context) (index.Stats, error) {
	_, err := s.loader.Reload(ctx)
	return s.loader.Stats(), err
}

// Status returns a snapshot of the service state.
func (s *Service) Status() Status {
	return Status{
		Ready: s.IsReady(),
		Index: s.loader.Stats(),
		Embedding: EmbeddingStatus{
			Provider:     s.settings.Embedding.Provider,
			Model:        s.embedder.ModelName(),
			Dimensions:   s.embedder.Dimensions(),
			Ready:        s.embedder.Ready(),
			LoadAttempts: s.embedder.LoadAttempts(),
		},
	}
}

// GetSettings returns the service settings.
func (s *Service) GetSettings() *config.Settings {
	return s.settings
}

// Close releases all resources.
func (s *Service) Close() error {
	return s.catalog.Close()
}
