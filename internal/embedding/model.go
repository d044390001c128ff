package embedding

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// DefaultLoadTimeout bounds a single model load attempt.
	DefaultLoadTimeout = 5 * time.Minute

	// DefaultCacheSize is the number of query vectors kept.
	DefaultCacheSize = 1000

	loadKey = "load"
)

// ModelEmbedder embeds queries with a Provider, loading the model lazily
// exactly once per process. Any failure degrades to the hashed fallback.
// A failed load is not remembered, so the next query retries.
type ModelEmbedder struct {
	provider    Provider
	dimensions  int
	loadTimeout time.Duration
	cache       *lru.Cache[string, []float32]
	limiter     *rate.Limiter
	logger      *slog.Logger

	group  singleflight.Group
	loaded atomic.Bool
	loads  atomic.Int64
}

// ModelOption configures a ModelEmbedder.
type ModelOption func(*ModelEmbedder)

// WithLoadTimeout bounds each model load attempt.
func WithLoadTimeout(d time.Duration) ModelOption {
	return func(m *ModelEmbedder) {
		if d > 0 {
			m.loadTimeout = d
		}
	}
}

// WithCacheSize sets the query vector cache size. Zero or less disables it.
func WithCacheSize(n int) ModelOption {
	return func(m *ModelEmbedder) {
		if n <= 0 {
			m.cache = nil
			return
		}
		m.cache, _ = lru.New[string, []float32](n)
	}
}

// WithRateLimit limits model calls per second. Zero or less means unlimited.
func WithRateLimit(perSecond float64) ModelOption {
	return func(m *ModelEmbedder) {
		if perSecond > 0 {
			m.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			m.limiter = nil
		}
	}
}

// WithFallbackDimensions sets the fallback vector length.
func WithFallbackDimensions(dims int) ModelOption {
	return func(m *ModelEmbedder) {
		if dims > 0 {
			m.dimensions = dims
		}
	}
}

// WithEmbedderLogger sets the logger.
func WithEmbedderLogger(logger *slog.Logger) ModelOption {
	return func(m *ModelEmbedder) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewModelEmbedder creates a ModelEmbedder. A nil provider always yields
// fallback embeddings.
func NewModelEmbedder(provider Provider, opts ...ModelOption) *ModelEmbedder {
	m := &ModelEmbedder{
		provider:    provider,
		dimensions:  DefaultDimensions,
		loadTimeout: DefaultLoadTimeout,
		logger:      slog.Default(),
	}
	if provider != nil && provider.Dimensions() > 0 {
		m.dimensions = provider.Dimensions()
	}
	m.cache, _ = lru.New[string, []float32](DefaultCacheSize)

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load loads the model once. Concurrent callers share the same attempt and
// its outcome. A caller whose context ends stops waiting, but the attempt
// continues for the others.
func (m *ModelEmbedder) Load(ctx context.Context) error {
	if m.provider == nil {
		return ErrModelUnavailable
	}
	if m.loaded.Load() {
		return nil
	}

	ch := m.group.DoChan(loadKey, func() (any, error) {
		if m.loaded.Load() {
			return nil, nil
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.loadTimeout)
		defer cancel()

		startTime := time.Now()
		m.loads.Add(1)
		m.logger.Info("Loading embedding model", "model", m.provider.ModelName())

		if err := m.provider.Load(loadCtx); err != nil {
			return nil, err
		}

		m.loaded.Store(true)
		m.logger.Info("Embedding model ready",
			"model", m.provider.ModelName(),
			"duration", time.Since(startTime))
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Embed returns the model embedding of text, or the hashed fallback when the
// model cannot be used. It never fails.
func (m *ModelEmbedder) Embed(ctx context.Context, text string) Embedding {
	if m.provider == nil {
		return Fallback(text, m.dimensions)
	}

	if m.cache != nil {
		if v, ok := m.cache.Get(text); ok {
			return Embedding{Vector: v, Source: SourceModel}
		}
	}

	if err := m.Load(ctx); err != nil {
		m.logger.Warn("Embedding model unavailable, using fallback",
			"model", m.provider.ModelName(), "error", err)
		return Fallback(text, m.dimensions)
	}

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			m.logger.Debug("Rate limiter wait aborted, using fallback", "error", err)
			return Fallback(text, m.dimensions)
		}
	}

	vec, err := m.provider.Embed(ctx, text)
	if err != nil {
		m.logger.Warn("Embedding query failed, using fallback",
			"model", m.provider.ModelName(), "error", err)
		return Fallback(text, m.dimensions)
	}

	if m.cache != nil {
		m.cache.Add(text, vec)
	}
	return Embedding{Vector: vec, Source: SourceModel}
}

// Ready reports whether the model has been loaded.
func (m *ModelEmbedder) Ready() bool {
	return m.loaded.Load()
}

// LoadAttempts returns how many load attempts have started.
func (m *ModelEmbedder) LoadAttempts() int64 {
	return m.loads.Load()
}

// ModelName returns the provider model name, or "none".
func (m *ModelEmbedder) ModelName() string {
	if m.provider == nil {
		return "none"
	}
	return m.provider.ModelName()
}

// Dimensions returns the query vector length.
func (m *ModelEmbedder) Dimensions() int {
	return m.dimensions
}
