package docsearch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sha1n/mcp-docsearch-server/internal/config"
	"github.com/sha1n/mcp-docsearch-server/internal/embedding"
	"github.com/sha1n/mcp-docsearch-server/internal/index"
	"github.com/sha1n/mcp-docsearch-server/internal/search"
)

// axisProvider embeds text onto one axis chosen by keyword.
type axisProvider struct {
	axes    map[string]int
	loadErr error
}

func (p *axisProvider) Load(context.Context) error { return p.loadErr }

func (p *axisProvider) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 3)
	for word, axis := range p.axes {
		if strings.Contains(strings.ToLower(text), word) {
			v[axis] = 1
			return v, nil
		}
	}
	v[2] = 1
	return v, nil
}

func (p *axisProvider) ModelName() string { return "axis" }

func (p *axisProvider) Dimensions() int { return 3 }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupService(t *testing.T, settings *config.Settings, opts ...ServiceOption) *Service {
	t.Helper()
	opts = append([]ServiceOption{WithLogger(discardLogger())}, opts...)
	svc, err := NewService(settings, opts...)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	t.Cleanup(func() {
		if err := svc.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return svc
}

func TestNewService_NilSettings(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Error("Expected error for nil settings")
	}
}

func TestNewService_UnknownProvider(t *testing.T) {
	settings := TestSettings("http://localhost/search-index.json")
	settings.Embedding.Provider = "word2vec"

	if _, err := NewService(settings); err == nil {
		t.Error("Expected error for unknown embedding provider")
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		settings  config.EmbeddingSettings
		expectNil bool
		expectErr bool
		model     string
	}{
		{"none", config.EmbeddingSettings{Provider: config.EmbeddingProviderNone}, true, false, ""},
		{"default is ollama", config.EmbeddingSettings{}, false, false, embedding.DefaultModel},
		{"ollama with model", config.EmbeddingSettings{Provider: config.EmbeddingProviderOllama, Model: "nomic-embed-text"}, false, false, "nomic-embed-text"},
		{"openai", config.EmbeddingSettings{Provider: config.EmbeddingProviderOpenAI, APIKey: "sk-test"}, false, false, embedding.DefaultOpenAIModel},
		{"openai without key", config.EmbeddingSettings{Provider: config.EmbeddingProviderOpenAI}, true, true, ""},
		{"unknown", config.EmbeddingSettings{Provider: "word2vec"}, true, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.settings)
			if (err != nil) != tt.expectErr {
				t.Fatalf("Expected error=%v, got %v", tt.expectErr, err)
			}
			if (p == nil) != tt.expectNil {
				t.Fatalf("Expected nil provider=%v, got %v", tt.expectNil, p)
			}
			if p != nil && p.ModelName() != tt.model {
				t.Errorf("Expected model %q, got %q", tt.model, p.ModelName())
			}
		})
	}
}

func TestService_LazyLoad(t *testing.T) {
	srv := NewIndexServer(t, SampleIndex())
	svc := setupService(t, TestSettings(srv.IndexURL()))

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if svc.IsReady() {
		t.Error("Expected service not to be ready before the first query")
	}
	if srv.Requests() != 0 {
		t.Errorf("Expected no fetch before the first query, got %d", srv.Requests())
	}

	if _, err := svc.Search(context.Background(), search.Request{Query: "install"}); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !svc.IsReady() {
		t.Error("Expected service to be ready after the first query")
	}
}

func TestService_Preload(t *testing.T) {
	srv := NewIndexServer(t, SampleIndex())
	settings := TestSettings(srv.IndexURL())
	settings.Search.Preload = true
	svc := setupService(t, settings)

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if !svc.IsReady() {
		t.Error("Expected service to be ready after preload")
	}
	if srv.Requests() != 1 {
		t.Errorf("Expected 1 fetch, got %d", srv.Requests())
	}
}

func TestService_PreloadFailureIsNotFatal(t *testing.T) {
	srv := NewIndexServer(t, SampleIndex())
	srv.SetStatus(http.StatusInternalServerError)
	settings := TestSettings(srv.IndexURL())
	settings.Search.Preload = true
	svc := setupService(t, settings)

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if svc.IsReady() {
		t.Error("Expected service not to be ready after failed preload")
	}

	// The next query retries
	srv.SetStatus(http.StatusOK)
	if _, err := svc.Search(context.Background(), search.Request{Query: "install"}); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !svc.IsReady() {
		t.Error("Expected service to recover on the next query")
	}
}

func TestService_KeywordSearch(t *testing.T) {
	srv := NewIndexServer(t, SampleIndex())
	svc := setupService(t, TestSettings(srv.IndexURL()))

	resp, err := svc.Search(context.Background(), search.Request{Query: "install"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if resp.Mode != search.ModeKeyword {
		t.Errorf("Expected keyword mode, got %s", resp.Mode)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Chunk.ID != "/v1.0.0/documentation/intro.mdx#chunk-1" {
		t.Errorf("Unexpected first result: %s", resp.Results[0].Chunk.ID)
	}
	if resp.Results[0].Score != 2.0 {
		t.Errorf("Expected boosted score 2.0, got %f", resp.Results[0].Score)
	}
}

func TestService_SearchFilters(t *testing.T) {
	srv := NewIndexServer(t, SampleIndex())
	svc := setupService(t, TestSettings(srv.IndexURL()))

	resp, err := svc.Search(context.Background(), search.Request{Query: "install", Version: "v2.0.0"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Chunk.Version != "v2.0.0" {
		t.Errorf("Expected a single v2.0.0 result, got %+v", resp.Results)
	}
}

func TestService_SearchDefaultLimit(t *testing.T) {
	srv := NewIndexServer(t, SampleIndex())
	settings := TestSettings(srv.IndexURL())
	settings.Search.MaxResults = 1
	svc := setupService(t, settings)

	resp, err := svc.Search(context.Background(), search.Request{Query: "install"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(resp.Results))
	}
	if resp.TotalMatches != 2 {
		t.Errorf("Expected 2 total matches, got %d", resp.TotalMatches)
	}
}

func TestService_VectorSearch(t *testing.T) {
	idx := SampleIndex()
	for i := range idx.Chunks {
		idx.Chunks[i].Embedding = []float32{0, 0, 1}
	}
	idx.Chunks[2].Embedding = []float32{1, 0, 0}

	srv := NewIndexServer(t, idx)
	provider := &axisProvider{axes: map[string]int{"events": 0}}
	svc := setupService(t, TestSettings(srv.IndexURL()), WithProvider(provider))

	resp, err := svc.Search(context.Background(), search.Request{Query: "events"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if resp.Mode != search.ModeVector {
		t.Errorf("Expected vector mode, got %s", resp.Mode)
	}
	if resp.EmbeddingSource != embedding.SourceModel {
		t.Errorf("Expected model embedding, got %s", resp.EmbeddingSource)
	}
	if len(resp.Results) != 1 || resp.Results[0].Chunk.PagePath != "/v1.0.0/api-reference/webhooks" {
		t.Errorf("Expected only the webhooks chunk, got %+v", resp.Results)
	}
}

func TestService_VectorSearchFallsBackWhenModelUnavailable(t *testing.T) {
	idx := SampleIndex()
	for i := range idx.Chunks {
		idx.Chunks[i].Embedding = []float32{1, 0, 0}
	}

	srv := NewIndexServer(t, idx)
	provider := &axisProvider{loadErr: embedding.ErrModelUnavailable}
	svc := setupService(t, TestSettings(srv.IndexURL()), WithProvider(provider))

	resp, err := svc.Search(context.Background(), search.Request{Query: "install"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.EmbeddingSource != embedding.SourceFallback {
		t.Errorf("Expected fallback embedding, got %s", resp.EmbeddingSource)
	}
	if svc.Status().Embedding.Ready {
		t.Error("Expected embedding model not to be ready")
	}
}

func TestService_IndexUnavailable(t *testing.T) {
	srv := NewIndexServer(t, SampleIndex())
	srv.SetStatus(http.StatusNotFound)
	svc := setupService(t, TestSettings(srv.IndexURL()))

	_, err := svc.Search(context.Background(), search.Request{Query: "install"})
	if !errors.Is(err, index.ErrIndexUnavailable) {
		t.Errorf("Expected ErrIndexUnavailable, got %v", err)
	}

	_, err = svc.Pages(context.Background(), "", "")
	if !errors.Is(err, index.ErrIndexUnavailable) {
		t.Errorf("Expected ErrIndexUnavailable from Pages, got %v", err)
	}
}

func TestService_EmptyQueryDoesNotLoad(t *testing.T) {
	srv := NewIndexServer(t, SampleIndex())
	svc := setupService(t, TestSettings(srv.IndexURL()))

	resp, err := svc.Search(context.Background(), search.Request{Query: "   "})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("Expected no results, got %d", len(resp.Results))
	}
	if srv.Requests() != 0 {
		t.Errorf("Expected no fetch, got %d", srv.Requests())
	}
}

func TestService_PageChunksAndPages(t *testing.T) {
	srv := NewIndexServer(t, SampleIndex())
	svc := setupService(t, TestSettings(srv.IndexURL()))
	ctx := context.Background()

	chunks, err := svc.PageChunks(ctx, "/v1.0.0/documentation/intro", "")
	if err != nil {
		t.Fatalf("PageChunks failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Errorf("Expected 2 chunks, got %d", len(chunks))
	}

	pages, err := svc.Pages(ctx, "", "documentation")
	if err != nil {
		t.Fatalf("Pages failed: %v", err)
	}
	if len(pages) != 2 {
		t.Errorf("Expected 2 pages, got %d", len(pages))
	}

	if srv.Requests() != 1 {
		t.Errorf("Expected a single fetch, got %d", srv.Requests())
	}
}

func TestService_ReloadAndStatus(t *testing.T) {
	srv := NewIndexServer(t, SampleIndex())
	svc := setupService(t, TestSettings(srv.IndexURL()))
	ctx := context.Background()

	status := svc.Status()
	if status.Ready || status.Index.Loaded {
		t.Error("Expected status not ready before load")
	}
	if status.Embedding.Provider != config.EmbeddingProviderNone {
		t.Errorf("Expected provider none, got %s", status.Embedding.Provider)
	}
	if status.Embedding.Model != "none" {
		t.Errorf("Expected model none, got %s", status.Embedding.Model)
	}

	stats, err := svc.Reload(ctx)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if !stats.Loaded || stats.Chunks != 5 || stats.Pages != 3 {
		t.Errorf("Unexpected stats after reload: %+v", stats)
	}

	// A failed reload keeps the previous index
	srv.SetStatus(http.StatusBadGateway)
	if _, err := svc.Reload(ctx); !errors.Is(err, index.ErrIndexUnavailable) {
		t.Errorf("Expected ErrIndexUnavailable, got %v", err)
	}
	if !svc.IsReady() {
		t.Error("Expected previous index to remain after failed reload")
	}
	if _, err := svc.Search(ctx, search.Request{Query: "webhooks"}); err != nil {
		t.Errorf("Search after failed reload failed: %v", err)
	}
}

func TestService_FileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	svc := setupService(t, TestSettings(path))

	_, err := svc.Search(context.Background(), search.Request{Query: "install"})
	if !errors.Is(err, index.ErrIndexUnavailable) {
		t.Errorf("Expected ErrIndexUnavailable, got %v", err)
	}
}

func TestService_GetSettings(t *testing.T) {
	settings := TestSettings("http://localhost/search-index.json")
	svc := setupService(t, settings)

	if svc.GetSettings() != settings {
		t.Error("Expected the settings the service was created with")
	}
}
