package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeOllama is a minimal Ollama API.
type fakeOllama struct {
	models     []string
	dimensions int
	pulled     atomic.Int32
	embeds     atomic.Int32
	failEmbed  bool
}

func (f *fakeOllama) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, _ *http.Request) {
		var resp ollamaTagsResponse
		for _, m := range f.models {
			resp.Models = append(resp.Models, ollamaModel{Name: m})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("POST /api/pull", func(w http.ResponseWriter, r *http.Request) {
		var req ollamaPullRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.pulled.Add(1)
		f.models = append(f.models, req.Model)
		_ = json.NewEncoder(w).Encode(ollamaPullResponse{Status: "success"})
	})
	mux.HandleFunc("POST /api/embeddings", func(w http.ResponseWriter, _ *http.Request) {
		f.embeds.Add(1)
		if f.failEmbed {
			http.Error(w, "model crashed", http.StatusInternalServerError)
			return
		}
		vec := make([]float32, f.dimensions)
		for i := range vec {
			vec[i] = 2
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: vec})
	})
	return mux
}

func newFakeOllama(t *testing.T, f *fakeOllama) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOllamaProvider_Defaults(t *testing.T) {
	provider := NewOllamaProvider()

	if provider.baseURL != DefaultOllamaURL {
		t.Errorf("baseURL = %s, want %s", provider.baseURL, DefaultOllamaURL)
	}
	if provider.model != DefaultModel {
		t.Errorf("model = %s, want %s", provider.model, DefaultModel)
	}
	if provider.dimensions != DefaultDimensions {
		t.Errorf("dimensions = %d, want %d", provider.dimensions, DefaultDimensions)
	}
	if !provider.pull {
		t.Error("pull should default to true")
	}
	if provider.client.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", provider.client.Timeout, DefaultTimeout)
	}
}

func TestNewOllamaProvider_WithOptions(t *testing.T) {
	provider := NewOllamaProvider(
		WithBaseURL("http://custom:8080/"),
		WithModel("custom-model"),
		WithDimensions(768),
		WithTimeout(time.Minute),
		WithPull(false),
	)

	if provider.baseURL != "http://custom:8080" {
		t.Errorf("baseURL = %s", provider.baseURL)
	}
	if provider.ModelName() != "custom-model" {
		t.Errorf("ModelName() = %s", provider.ModelName())
	}
	if provider.Dimensions() != 768 {
		t.Errorf("Dimensions() = %d", provider.Dimensions())
	}
	if provider.client.Timeout != time.Minute {
		t.Errorf("timeout = %v", provider.client.Timeout)
	}
	if provider.pull {
		t.Error("pull should be disabled")
	}
}

func TestNewOllamaProvider_EmptyOptionsKeepDefaults(t *testing.T) {
	provider := NewOllamaProvider(WithBaseURL(""), WithModel(""), WithDimensions(0), WithTimeout(0))

	if provider.baseURL != DefaultOllamaURL || provider.model != DefaultModel ||
		provider.dimensions != DefaultDimensions || provider.client.Timeout != DefaultTimeout {
		t.Errorf("empty options should keep defaults: %+v", provider)
	}
}

func TestOllamaProvider_LoadModelPresent(t *testing.T) {
	fake := &fakeOllama{models: []string{"all-minilm:l6-v2"}, dimensions: 4}
	srv := newFakeOllama(t, fake)

	provider := NewOllamaProvider(WithBaseURL(srv.URL))
	if err := provider.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if fake.pulled.Load() != 0 {
		t.Error("model should not be pulled when present")
	}
}

func TestOllamaProvider_LoadLatestTag(t *testing.T) {
	fake := &fakeOllama{models: []string{"nomic-embed-text:latest"}}
	srv := newFakeOllama(t, fake)

	provider := NewOllamaProvider(WithBaseURL(srv.URL), WithModel("nomic-embed-text"))
	has, err := provider.HasModel(context.Background())
	if err != nil {
		t.Fatalf("HasModel failed: %v", err)
	}
	if !has {
		t.Error("untagged name should match :latest")
	}
}

func TestOllamaProvider_LoadPullsMissingModel(t *testing.T) {
	fake := &fakeOllama{}
	srv := newFakeOllama(t, fake)

	provider := NewOllamaProvider(WithBaseURL(srv.URL))
	if err := provider.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if fake.pulled.Load() != 1 {
		t.Errorf("pulled = %d, want 1", fake.pulled.Load())
	}
}

func TestOllamaProvider_LoadMissingWithoutPull(t *testing.T) {
	srv := newFakeOllama(t, &fakeOllama{})

	provider := NewOllamaProvider(WithBaseURL(srv.URL), WithPull(false))
	err := provider.Load(context.Background())
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestOllamaProvider_LoadUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	provider := NewOllamaProvider(WithBaseURL(url))
	err := provider.Load(context.Background())
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestOllamaProvider_EmbedNormalizes(t *testing.T) {
	srv := newFakeOllama(t, &fakeOllama{dimensions: 4})

	provider := NewOllamaProvider(WithBaseURL(srv.URL), WithDimensions(4))
	vec, err := provider.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("len = %d, want 4", len(vec))
	}
	for _, x := range vec {
		if x < 0.4999 || x > 0.5001 {
			t.Errorf("component = %v, want 0.5", x)
		}
	}
}

func TestOllamaProvider_EmbedDimensionMismatch(t *testing.T) {
	srv := newFakeOllama(t, &fakeOllama{dimensions: 3})

	provider := NewOllamaProvider(WithBaseURL(srv.URL), WithDimensions(4))
	_, err := provider.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestOllamaProvider_EmbedServerError(t *testing.T) {
	srv := newFakeOllama(t, &fakeOllama{dimensions: 4, failEmbed: true})

	provider := NewOllamaProvider(WithBaseURL(srv.URL), WithDimensions(4))
	_, err := provider.Embed(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "model crashed") {
		t.Errorf("expected error with body, got %v", err)
	}
}

func TestFormatErrorBody(t *testing.T) {
	if got := formatErrorBody(strings.NewReader("  boom \n")); got != "boom" {
		t.Errorf("formatErrorBody() = %q, want %q", got, "boom")
	}
}
