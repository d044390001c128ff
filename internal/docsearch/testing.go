package docsearch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sha1n/mcp-docsearch-server/internal/config"
	"github.com/sha1n/mcp-docsearch-server/internal/domain"
)

// SampleIndex returns a small keyword-mode index spanning two versions and
// two tabs. Chunks of the v2.0.0 intro page are stored out of position order.
// This is exported for use in integration tests.
func SampleIndex() domain.SearchIndex {
	return domain.SearchIndex{
		Chunks: []domain.IndexChunk{
			{
				ID:           "/v1.0.0/documentation/intro.mdx#chunk-0",
				PageID:       "/v1.0.0/documentation/intro.mdx",
				PagePath:     "/v1.0.0/documentation/intro",
				PageTitle:    "Introduction",
				SectionTitle: "Introduction",
				Content:      "Welcome to the platform documentation. This guide covers the basics.",
				Position:     0,
				Version:      "v1.0.0",
				Tab:          "Documentation",
			},
			{
				ID:           "/v1.0.0/documentation/intro.mdx#chunk-1",
				PageID:       "/v1.0.0/documentation/intro.mdx",
				PagePath:     "/v1.0.0/documentation/intro",
				PageTitle:    "Introduction",
				SectionTitle: "Installation",
				HeadingID:    "installation",
				Content:      "Install the command line tool with the package manager of your choice.",
				Position:     1,
				Version:      "v1.0.0",
				Tab:          "Documentation",
			},
			{
				ID:           "/v1.0.0/api-reference/webhooks.mdx#chunk-0",
				PageID:       "/v1.0.0/api-reference/webhooks.mdx",
				PagePath:     "/v1.0.0/api-reference/webhooks",
				PageTitle:    "Webhooks",
				SectionTitle: "Configuring webhooks",
				HeadingID:    "configuring-webhooks",
				Content:      "Webhooks deliver event notifications to your endpoint over HTTPS.",
				Position:     0,
				Version:      "v1.0.0",
				Tab:          "Api Reference",
			},
			{
				ID:           "/v2.0.0/documentation/intro.mdx#chunk-1",
				PageID:       "/v2.0.0/documentation/intro.mdx",
				PagePath:     "/v2.0.0/documentation/intro",
				PageTitle:    "Introduction",
				SectionTitle: "Installation",
				HeadingID:    "installation",
				Content:      "Version two ships a single binary installer for every platform.",
				Position:     1,
				Version:      "v2.0.0",
				Tab:          "Documentation",
			},
			{
				ID:           "/v2.0.0/documentation/intro.mdx#chunk-0",
				PageID:       "/v2.0.0/documentation/intro.mdx",
				PagePath:     "/v2.0.0/documentation/intro",
				PageTitle:    "Introduction",
				SectionTitle: "Introduction",
				Content:      "Welcome to version two of the platform.",
				Position:     0,
				Version:      "v2.0.0",
				Tab:          "Documentation",
			},
		},
		Metadata: domain.IndexMetadata{
			GeneratedAt: "2026-01-15T10:00:00Z",
			TotalChunks: 5,
			TotalPages:  3,
		},
	}
}

// IndexServer serves a search index over HTTP and counts requests.
// This is exported for use in integration tests.
type IndexServer struct {
	*httptest.Server
	requests atomic.Int64
	status   atomic.Int64
}

// NewIndexServer starts a server that returns idx as JSON. It is closed when
// the test ends.
func NewIndexServer(t testing.TB, idx domain.SearchIndex) *IndexServer {
	t.Helper()

	body, err := json.Marshal(idx)
	if err != nil {
		t.Fatalf("failed to encode index: %v", err)
	}

	s := &IndexServer{}
	s.status.Store(http.StatusOK)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		status := int(s.status.Load())
		if status != http.StatusOK {
			http.Error(w, http.StatusText(status), status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

// IndexURL returns the URL the index is served at.
func (s *IndexServer) IndexURL() string {
	return s.URL + "/search-index.json"
}

// SetStatus makes subsequent requests fail with status, or succeed with 200.
func (s *IndexServer) SetStatus(status int) {
	s.status.Store(int64(status))
}

// Requests returns the number of requests served.
func (s *IndexServer) Requests() int64 {
	return s.requests.Load()
}

// TestSettings returns valid settings reading the index from indexURL with
// query embedding disabled.
func TestSettings(indexURL string) *config.Settings {
	return &config.Settings{
		Transport: "stdio",
		Auth:      config.AuthSettings{Type: config.AuthTypeNone},
		Search: config.SearchSettings{
			IndexURL:     indexURL,
			FetchTimeout: 5 * time.Second,
			MaxResults:   10,
		},
		Embedding: config.EmbeddingSettings{
			Provider:    config.EmbeddingProviderNone,
			Dimensions:  384,
			Timeout:     5 * time.Second,
			LoadTimeout: 5 * time.Second,
			CacheSize:   100,
		},
	}
}
