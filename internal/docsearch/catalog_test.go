package docsearch

import (
	"errors"
	"testing"

	"github.com/sha1n/mcp-docsearch-server/internal/domain"
)

func newTestCatalog(t *testing.T, idx *domain.SearchIndex) *Catalog {
	t.Helper()
	c := NewCatalog()
	if err := c.Build(idx); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return c
}

func TestCatalog_NotReady(t *testing.T) {
	c := NewCatalog()
	if c.Ready() {
		t.Error("Expected empty catalog not to be ready")
	}

	if _, err := c.PageChunks("/v1.0.0/documentation/intro", ""); !errors.Is(err, ErrCatalogNotReady) {
		t.Errorf("Expected ErrCatalogNotReady, got %v", err)
	}
	if _, err := c.Pages("", ""); !errors.Is(err, ErrCatalogNotReady) {
		t.Errorf("Expected ErrCatalogNotReady, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on empty catalog failed: %v", err)
	}
}

func TestCatalog_PageChunksInPositionOrder(t *testing.T) {
	idx := SampleIndex()
	c := newTestCatalog(t, &idx)

	if !c.Ready() {
		t.Fatal("Expected catalog to be ready")
	}

	chunks, err := c.PageChunks("/v2.0.0/documentation/intro", "")
	if err != nil {
		t.Fatalf("PageChunks failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Position != i {
			t.Errorf("Expected chunk %d at position %d, got %d", i, i, chunk.Position)
		}
	}

	// Chunks point into the cataloged index
	if chunks[0] != &idx.Chunks[4] {
		t.Error("Expected chunk pointer into the source index")
	}
}

func TestCatalog_PageChunksVersionFilter(t *testing.T) {
	idx := SampleIndex()
	c := newTestCatalog(t, &idx)

	tests := []struct {
		name     string
		path     string
		version  string
		expected int
	}{
		{"any version", "/v1.0.0/documentation/intro", "", 2},
		{"matching version", "/v1.0.0/documentation/intro", "v1.0.0", 2},
		{"other version", "/v1.0.0/documentation/intro", "v2.0.0", 0},
		{"unknown page", "/v1.0.0/documentation/missing", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := c.PageChunks(tt.path, tt.version)
			if err != nil {
				t.Fatalf("PageChunks failed: %v", err)
			}
			if len(chunks) != tt.expected {
				t.Errorf("Expected %d chunks, got %d", tt.expected, len(chunks))
			}
		})
	}
}

func TestCatalog_Pages(t *testing.T) {
	idx := SampleIndex()
	c := newTestCatalog(t, &idx)

	pages, err := c.Pages("", "")
	if err != nil {
		t.Fatalf("Pages failed: %v", err)
	}

	expected := []PageSummary{
		{Path: "/v1.0.0/api-reference/webhooks", Title: "Webhooks", Version: "v1.0.0", Tab: "Api Reference", Chunks: 1},
		{Path: "/v1.0.0/documentation/intro", Title: "Introduction", Version: "v1.0.0", Tab: "Documentation", Chunks: 2},
		{Path: "/v2.0.0/documentation/intro", Title: "Introduction", Version: "v2.0.0", Tab: "Documentation", Chunks: 2},
	}
	if len(pages) != len(expected) {
		t.Fatalf("Expected %d pages, got %d: %+v", len(expected), len(pages), pages)
	}
	for i := range expected {
		if pages[i] != expected[i] {
			t.Errorf("Page %d: expected %+v, got %+v", i, expected[i], pages[i])
		}
	}
}

func TestCatalog_PagesFilters(t *testing.T) {
	idx := SampleIndex()
	c := newTestCatalog(t, &idx)

	tests := []struct {
		name     string
		version  string
		tab      string
		expected int
	}{
		{"version", "v1.0.0", "", 2},
		{"tab", "", "Documentation", 2},
		{"tab is case-insensitive", "", "api reference", 1},
		{"version and tab", "v2.0.0", "documentation", 1},
		{"no match", "v3.0.0", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := c.Pages(tt.version, tt.tab)
			if err != nil {
				t.Fatalf("Pages failed: %v", err)
			}
			if len(pages) != tt.expected {
				t.Errorf("Expected %d pages, got %d: %+v", tt.expected, len(pages), pages)
			}
		})
	}
}

func TestCatalog_RebuildReplacesSnapshot(t *testing.T) {
	first := SampleIndex()
	c := newTestCatalog(t, &first)

	// Same index is a no-op
	if err := c.Build(&first); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	second := domain.SearchIndex{
		Chunks: []domain.IndexChunk{
			{ID: "a#0", PagePath: "/v3.0.0/guide", PageTitle: "Guide", Content: "guide", Version: "v3.0.0", Tab: "Guides"},
		},
	}
	if err := c.Build(&second); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	pages, err := c.Pages("", "")
	if err != nil {
		t.Fatalf("Pages failed: %v", err)
	}
	if len(pages) != 1 || pages[0].Path != "/v3.0.0/guide" {
		t.Errorf("Expected only the rebuilt page, got %+v", pages)
	}
}

func TestCatalog_LargeIndexUsesMultipleBatches(t *testing.T) {
	idx := domain.SearchIndex{}
	for i := 0; i < MaxBatchSize+10; i++ {
		idx.Chunks = append(idx.Chunks, domain.IndexChunk{
			ID:        "/big#chunk",
			PagePath:  "/big",
			PageTitle: "Big",
			Content:   "content",
			Position:  MaxBatchSize + 10 - i,
		})
	}
	c := newTestCatalog(t, &idx)

	chunks, err := c.PageChunks("/big", "")
	if err != nil {
		t.Fatalf("PageChunks failed: %v", err)
	}
	if len(chunks) != MaxBatchSize+10 {
		t.Fatalf("Expected %d chunks, got %d", MaxBatchSize+10, len(chunks))
	}
	if chunks[0].Position != 1 {
		t.Errorf("Expected first chunk at position 1, got %d", chunks[0].Position)
	}
}
