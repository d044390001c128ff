package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sha1n/mcp-docsearch-server/internal/domain"
	"github.com/sha1n/mcp-docsearch-server/internal/embedding"
	"github.com/sha1n/mcp-docsearch-server/internal/tokenizer"
)

// Ranking constants. They are empirical and kept as-is for compatibility
// with the ranking the documentation UI already shows.
const (
	DefaultMaxResults = 10

	// VectorScoreThreshold is the exclusive lower bound for vector-mode hits.
	VectorScoreThreshold = 0.15

	// SectionTitleBoost and PageTitleBoost multiply vector scores when the
	// raw query appears in the respective title.
	SectionTitleBoost = 1.5
	PageTitleBoost    = 1.2

	// KeywordSectionTitleBoost multiplies keyword scores when the raw query
	// appears in the section title.
	KeywordSectionTitleBoost = 2.0
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Mode is the scoring strategy picked for a query.
type Mode string

const (
	ModeVector  Mode = "vector"  // Cosine similarity against chunk embeddings
	ModeKeyword Mode = "keyword" // Loose token overlap
)

// IndexSource provides the loaded search index, loading it on first use.
type IndexSource interface {
	EnsureLoaded(ctx context.Context) (*domain.SearchIndex, error)
}

// QueryEmbedder turns query text into a vector. It never fails; degraded
// output is signalled through the embedding source.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) embedding.Embedding
}

// Request contains parameters for a search.
type Request struct {
	Query string
	Limit int

	// Optional navigation filters. Empty matches everything.
	Version string
	Tab     string
}

// accepts reports whether a chunk passes the request filters.
func (r Request) accepts(c *domain.IndexChunk) bool {
	if r.Version != "" && c.Version != r.Version {
		return false
	}
	if r.Tab != "" && !strings.EqualFold(c.Tab, r.Tab) {
		return false
	}
	return true
}

// Response contains ranked results and how they were produced.
type Response struct {
	Query           string                `json:"query"`
	Results         []domain.SearchResult `json:"results"`
	Mode            Mode                  `json:"mode,omitempty"`
	EmbeddingSource embedding.Source      `json:"embeddingSource"`
	TotalMatches    int                   `json:"totalMatches"`
	Duration        time.Duration         `json:"-"`
}

// Engine ranks index chunks against free-text queries.
// It holds no per-query state and is safe for concurrent use.
type Engine struct {
	index    IndexSource
	embedder QueryEmbedder
	logger   *slog.Logger
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a search engine. The embedder may be nil, in which case
// vector-mode queries use the hashed fallback embedding.
func NewEngine(index IndexSource, embedder QueryEmbedder, opts ...EngineOption) (*Engine, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: index source is required", ErrNilDependency)
	}
	e := &Engine{
		index:    index,
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search returns up to maxResults ranked results for query.
// A maxResults of zero or less means DefaultMaxResults.
func (e *Engine) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	resp, err := e.Query(ctx, Request{Query: query, Limit: maxResults})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Query runs a search. Index load failures are returned wrapped so callers
// can tell them apart from an empty result.
func (e *Engine) Query(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return &Response{Query: req.Query, Results: []domain.SearchResult{}}, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	idx, err := e.index.EnsureLoaded(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", req.Query, err)
	}

	resp := &Response{Query: req.Query}
	var results []domain.SearchResult

	if idx.HasEmbeddings() {
		resp.Mode = ModeVector
		emb := e.embedQuery(ctx, req.Query, idx)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp.EmbeddingSource = emb.Source
		results = vectorScore(idx, req, emb.Vector)
	} else {
		resp.Mode = ModeKeyword
		results = keywordScore(idx, req)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	resp.TotalMatches = len(results)
	if len(results) > limit {
		results = results[:limit]
	}

	for i := range results {
		c := results[i].Chunk
		results[i].Matches = FindMatches(c.Content, c.SectionTitle, req.Query)
		results[i].Preview = ExtractPreview(c.Content, req.Query, DefaultPreviewLength)
	}

	resp.Results = results
	resp.Duration = time.Since(startTime)

	e.logger.DebugContext(ctx, "Search completed",
		"mode", resp.Mode,
		"embedding_source", resp.EmbeddingSource,
		"matches", resp.TotalMatches,
		"returned", len(results),
		"duration", resp.Duration)

	return resp, nil
}

// embedQuery computes the single query embedding reused for every chunk.
func (e *Engine) embedQuery(ctx context.Context, query string, idx *domain.SearchIndex) embedding.Embedding {
	if e.embedder != nil {
		return e.embedder.Embed(ctx, query)
	}
	return embedding.Embedding{
		Vector: embedding.HashedEmbedding(query, indexDimensions(idx)),
		Source: embedding.SourceFallback,
	}
}

// indexDimensions returns the embedding length of the first embedded chunk.
func indexDimensions(idx *domain.SearchIndex) int {
	for i := range idx.Chunks {
		if n := len(idx.Chunks[i].Embedding); n > 0 {
			return n
		}
	}
	return embedding.DefaultDimensions
}

// vectorScore scores embedded chunks by cosine similarity with title boosts.
// Chunks without an embedding are skipped.
func vectorScore(idx *domain.SearchIndex, req Request, queryVec []float32) []domain.SearchResult {
	queryLower := strings.ToLower(req.Query)
	results := make([]domain.SearchResult, 0)

	for i := range idx.Chunks {
		c := &idx.Chunks[i]
		if !c.HasEmbedding() || !req.accepts(c) {
			continue
		}

		score := CosineSimilarity(queryVec, c.Embedding)
		if strings.Contains(strings.ToLower(c.SectionTitle), queryLower) {
			score *= SectionTitleBoost
		}
		if strings.Contains(strings.ToLower(c.PageTitle), queryLower) {
			score *= PageTitleBoost
		}

		if score > VectorScoreThreshold {
			results = append(results, domain.SearchResult{Chunk: c, Score: score})
		}
	}

	return results
}

// keywordScore scores chunks by the fraction of query tokens that overlap a
// chunk token as a substring in either direction.
func keywordScore(idx *domain.SearchIndex, req Request) []domain.SearchResult {
	queryTokens := tokenizer.Tokenize(req.Query)
	results := make([]domain.SearchResult, 0)
	if len(queryTokens) == 0 {
		return results
	}

	queryLower := strings.ToLower(req.Query)

	for i := range idx.Chunks {
		c := &idx.Chunks[i]
		if !req.accepts(c) {
			continue
		}

		chunkTokens := tokenizer.Tokenize(c.Content + " " + c.SectionTitle + " " + c.PageTitle)
		matchCount := 0
		for _, qt := range queryTokens {
			if overlapsAny(qt, chunkTokens) {
				matchCount++
			}
		}
		if matchCount == 0 {
			continue
		}

		score := float64(matchCount) / float64(len(queryTokens))
		if strings.Contains(strings.ToLower(c.SectionTitle), queryLower) {
			score *= KeywordSectionTitleBoost
		}

		results = append(results, domain.SearchResult{Chunk: c, Score: score})
	}

	return results
}

// overlapsAny reports whether any token contains queryToken or is contained by it.
func overlapsAny(queryToken string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(t, queryToken) || strings.Contains(queryToken, t) {
			return true
		}
	}
	return false
}
