package docsearch

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/sha1n/mcp-docsearch-server/internal/domain"
)

const (
	// MaxBatchSize is the maximum number of documents per batch
	MaxBatchSize = 500

	pagesFacet = "pages"
)

// ErrCatalogNotReady is returned before the first index has been cataloged.
var ErrCatalogNotReady = errors.New("page catalog not ready")

// PageSummary describes one documentation page.
type PageSummary struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Version string `json:"version"`
	Tab     string `json:"tab"`
	Chunks  int    `json:"chunks"`
}

// catalogDoc is the bleve document for one chunk. Ranking never uses it.
type catalogDoc struct {
	PagePath     string  `json:"pagePath"`
	Version      string  `json:"version"`
	Tab          string  `json:"tab"`
	PageTitle    string  `json:"pageTitle"`
	SectionTitle string  `json:"sectionTitle"`
	Position     float64 `json:"position"`
}

// catalogSnapshot is an immutable bleve index over one SearchIndex.
type catalogSnapshot struct {
	source *domain.SearchIndex
	index  bleve.Index
	pages  map[string]*domain.IndexChunk // first chunk of each page
}

// Catalog is an in-memory navigation index over chunk metadata.
// It answers page lookups and listings for the loaded search index.
type Catalog struct {
	mu       sync.RWMutex
	snapshot *catalogSnapshot
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// CreateCatalogMapping creates the bleve index mapping for chunk metadata.
func CreateCatalogMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// Navigation labels - keyword (not analyzed) for exact filtering and facets
	for _, field := range []string{domain.CatalogFieldPagePath, domain.CatalogFieldVersion, domain.CatalogFieldTab} {
		keywordField := bleve.NewTextFieldMapping()
		keywordField.Analyzer = keyword.Name
		keywordField.Store = true
		docMapping.AddFieldMappingsAt(field, keywordField)
	}

	// Titles - analyzed, stored for retrieval
	for _, field := range []string{domain.CatalogFieldPageTitle, domain.CatalogFieldSectionTitle} {
		titleField := bleve.NewTextFieldMapping()
		titleField.Analyzer = standard.Name
		titleField.Store = true
		docMapping.AddFieldMappingsAt(field, titleField)
	}

	// Position - numeric for ordering
	positionField := bleve.NewNumericFieldMapping()
	positionField.Store = true
	docMapping.AddFieldMappingsAt(domain.CatalogFieldPosition, positionField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// Build catalogs idx, replacing the previous snapshot. Building the same
// index twice is a no-op.
func (c *Catalog) Build(idx *domain.SearchIndex) error {
	c.mu.RLock()
	current := c.snapshot
	c.mu.RUnlock()
	if current != nil && current.source == idx {
		return nil
	}

	index, err := bleve.NewMemOnly(CreateCatalogMapping())
	if err != nil {
		return fmt.Errorf("failed to create catalog index: %w", err)
	}

	pages := make(map[string]*domain.IndexChunk)
	batch := index.NewBatch()
	for i := range idx.Chunks {
		chunk := &idx.Chunks[i]
		doc := catalogDoc{
			PagePath:     chunk.PagePath,
			Version:      chunk.Version,
			Tab:          strings.ToLower(chunk.Tab),
			PageTitle:    chunk.PageTitle,
			SectionTitle: chunk.SectionTitle,
			Position:     float64(chunk.Position),
		}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			_ = index.Close()
			return fmt.Errorf("failed to add chunk %s to batch: %w", chunk.ID, err)
		}

		if first, ok := pages[chunk.PagePath]; !ok || chunk.Position < first.Position {
			pages[chunk.PagePath] = chunk
		}

		if batch.Size() >= MaxBatchSize {
			if err := index.Batch(batch); err != nil {
				_ = index.Close()
				return fmt.Errorf("failed to index batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			_ = index.Close()
			return fmt.Errorf("failed to index batch: %w", err)
		}
	}

	c.mu.Lock()
	previous := c.snapshot
	c.snapshot = &catalogSnapshot{source: idx, index: index, pages: pages}
	c.mu.Unlock()

	if previous != nil {
		_ = previous.index.Close()
	}
	return nil
}

// Ready reports whether an index has been cataloged.
func (c *Catalog) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot != nil
}

// PageChunks returns the chunks of a page in position order. An empty version
// matches every version.
func (c *Catalog) PageChunks(pagePath, version string) ([]*domain.IndexChunk, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := c.snapshot
	if snap == nil {
		return nil, ErrCatalogNotReady
	}

	pathQuery := bleve.NewTermQuery(pagePath)
	pathQuery.SetField(domain.CatalogFieldPagePath)
	must := []query.Query{pathQuery}
	if version != "" {
		versionQuery := bleve.NewTermQuery(version)
		versionQuery.SetField(domain.CatalogFieldVersion)
		must = append(must, versionQuery)
	}

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(must...))
	req.Size = len(snap.source.Chunks)
	req.SortBy([]string{domain.CatalogFieldPosition, "_id"})

	res, err := snap.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}

	chunks := make([]*domain.IndexChunk, 0, len(res.Hits))
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(snap.source.Chunks) {
			continue
		}
		chunks = append(chunks, &snap.source.Chunks[i])
	}
	return chunks, nil
}

// Pages lists pages with their chunk counts, ordered by path. Empty filters
// match everything; the tab filter is case-insensitive.
func (c *Catalog) Pages(version, tab string) ([]PageSummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := c.snapshot
	if snap == nil {
		return nil, ErrCatalogNotReady
	}

	var q query.Query = bleve.NewMatchAllQuery()
	var must []query.Query
	if version != "" {
		versionQuery := bleve.NewTermQuery(version)
		versionQuery.SetField(domain.CatalogFieldVersion)
		must = append(must, versionQuery)
	}
	if tab != "" {
		tabQuery := bleve.NewTermQuery(strings.ToLower(tab))
		tabQuery.SetField(domain.CatalogFieldTab)
		must = append(must, tabQuery)
	}
	if len(must) > 0 {
		q = bleve.NewConjunctionQuery(must...)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = 0
	req.AddFacet(pagesFacet, bleve.NewFacetRequest(domain.CatalogFieldPagePath, len(snap.pages)+1))

	res, err := snap.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}

	facet, ok := res.Facets[pagesFacet]
	if !ok || facet.Terms == nil {
		return []PageSummary{}, nil
	}

	pages := make([]PageSummary, 0, facet.Terms.Len())
	for _, term := range facet.Terms.Terms() {
		summary := PageSummary{Path: term.Term, Chunks: term.Count}
		if first, ok := snap.pages[term.Term]; ok {
			summary.Title = first.PageTitle
			summary.Version = first.Version
			summary.Tab = first.Tab
		}
		pages = append(pages, summary)
	}

	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Path < pages[j].Path
	})
	return pages, nil
}

// Close releases the catalog index.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot == nil {
		return nil
	}
	err := c.snapshot.index.Close()
	c.snapshot = nil
	if err != nil {
		return fmt.Errorf("failed to close catalog: %w", err)
	}
	return nil
}
