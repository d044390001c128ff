package domain

import "strings"

// IndexChunk is a contiguous excerpt of a documentation page.
// Field names follow the search-index.json artifact produced by the docs build.
type IndexChunk struct {
	// ID is unique across the index.
	// Format: "/v1.0.0/documentation/intro.mdx#chunk-0"
	ID string `json:"id"`

	// PageID and PagePath identify the source document and its navigable URL.
	PageID   string `json:"pageId"`
	PagePath string `json:"pagePath"`

	// PageTitle and SectionTitle are used for breadcrumbs and title boosting.
	PageTitle    string `json:"pageTitle"`
	SectionTitle string `json:"sectionTitle"`

	// Content is plain text, already stripped of markup.
	Content string `json:"content"`

	// HeadingID is the optional in-page anchor for deep links.
	HeadingID string `json:"headingId,omitempty"`

	// Position is the chunk order within its page.
	Position int `json:"position"`

	// Version and Tab are navigation labels (e.g. "v1.0.0", "Api Reference").
	Version string `json:"version"`
	Tab     string `json:"tab"`

	// Embedding is optional. Either every chunk carries one of identical
	// length, or none do.
	Embedding []float32 `json:"embedding,omitempty"`
}

// HasEmbedding reports whether the chunk carries a non-empty embedding.
func (c *IndexChunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// Link returns the page path with the heading anchor appended when present.
func (c *IndexChunk) Link() string {
	if c.HeadingID == "" {
		return c.PagePath
	}
	return c.PagePath + "#" + c.HeadingID
}

// Breadcrumb returns the navigation trail version › tab › page › section,
// skipping empty labels and a section title that repeats the page title.
func (c *IndexChunk) Breadcrumb() []string {
	var crumbs []string
	for _, label := range []string{c.Version, c.Tab, c.PageTitle} {
		if strings.TrimSpace(label) != "" {
			crumbs = append(crumbs, label)
		}
	}
	if c.SectionTitle != "" && c.SectionTitle != c.PageTitle {
		crumbs = append(crumbs, c.SectionTitle)
	}
	return crumbs
}

// IndexMetadata is informational only.
type IndexMetadata struct {
	GeneratedAt string `json:"generatedAt"`
	TotalChunks int    `json:"totalChunks"`
	TotalPages  int    `json:"totalPages"`
}

// SearchIndex is the whole loaded artifact. It is immutable once published.
type SearchIndex struct {
	Chunks   []IndexChunk  `json:"chunks"`
	Metadata IndexMetadata `json:"metadata"`
}

// HasEmbeddings reports whether any chunk carries an embedding.
func (i *SearchIndex) HasEmbeddings() bool {
	for k := range i.Chunks {
		if i.Chunks[k].HasEmbedding() {
			return true
		}
	}
	return false
}

// SearchResult is produced per query. Chunk points into the loaded index and
// must be treated as read-only.
type SearchResult struct {
	Chunk   *IndexChunk `json:"chunk"`
	Score   float64     `json:"score"`
	Matches []string    `json:"matches"`
	Preview string      `json:"preview"`
}

// Catalog field names used by the page catalog mapping and its queries.
const (
	CatalogFieldPagePath     = "pagePath"
	CatalogFieldVersion      = "version"
	CatalogFieldTab          = "tab"
	CatalogFieldPageTitle    = "pageTitle"
	CatalogFieldSectionTitle = "sectionTitle"
	CatalogFieldPosition     = "position"
)
