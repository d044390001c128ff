package docsearch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sha1n/mcp-docsearch-server/internal/domain"
	"github.com/sha1n/mcp-docsearch-server/internal/embedding"
	"github.com/sha1n/mcp-docsearch-server/internal/index"
	"github.com/sha1n/mcp-docsearch-server/internal/search"
)

// APIPrefix is the path prefix the JSON API is served under.
const APIPrefix = "/api/"

// searchResponse is the JSON body of a search request.
type searchResponse struct {
	Query           string                `json:"query"`
	Mode            search.Mode           `json:"mode,omitempty"`
	EmbeddingSource embedding.Source      `json:"embeddingSource"`
	TotalMatches    int                   `json:"totalMatches"`
	Results         []domain.SearchResult `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type reloadResponse struct {
	Reloaded bool        `json:"reloaded"`
	Index    index.Stats `json:"index"`
	Error    string      `json:"error,omitempty"`
}

// NewHTTPHandler returns the JSON API handler for a service.
func NewHTTPHandler(service *Service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/search", func(w http.ResponseWriter, r *http.Request) {
		handleSearch(w, r, service)
	})
	mux.HandleFunc("GET /api/pages", func(w http.ResponseWriter, r *http.Request) {
		handlePages(w, r, service)
	})
	mux.HandleFunc("GET /api/index/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, service.Status())
	})
	mux.HandleFunc("POST /api/index/reload", func(w http.ResponseWriter, r *http.Request) {
		handleReload(w, r, service)
	})
	return mux
}

func handleSearch(w http.ResponseWriter, r *http.Request, service *Service) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxToolResults)
	}

	resp, err := service.Search(r.Context(), search.Request{
		Query:   q.Get("q"),
		Limit:   limit,
		Version: q.Get("version"),
		Tab:     q.Get("tab"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Query:           resp.Query,
		Mode:            resp.Mode,
		EmbeddingSource: resp.EmbeddingSource,
		TotalMatches:    resp.TotalMatches,
		Results:         withoutEmbeddings(resp.Results),
	})
}

func handlePages(w http.ResponseWriter, r *http.Request, service *Service) {
	q := r.URL.Query()
	pages, err := service.Pages(r.Context(), q.Get("version"), q.Get("tab"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func handleReload(w http.ResponseWriter, r *http.Request, service *Service) {
	stats, err := service.Reload(r.Context())
	if err != nil {
		slog.WarnContext(r.Context(), "Index reload failed", "error", err)
		writeJSON(w, statusFor(err), reloadResponse{Index: stats, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, reloadResponse{Reloaded: true, Index: stats})
}

// withoutEmbeddings copies results, dropping chunk vectors from the payload.
func withoutEmbeddings(results []domain.SearchResult) []domain.SearchResult {
	out := make([]domain.SearchResult, len(results))
	for i, r := range results {
		chunk := *r.Chunk
		chunk.Embedding = nil
		r.Chunk = &chunk
		out[i] = r
	}
	return out
}

// statusFor maps a service error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, index.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		// Client went away
		return
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "API request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: strings.TrimSpace(message)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}
