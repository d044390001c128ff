package config

import (
	"context"
	"log/slog"
)

const masked = "****"

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == "sse" {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
	}

	logger.InfoContext(ctx, "Config: auth.type", "value", s.Auth.Type)
	switch s.Auth.Type {
	case AuthTypeBasic:
		logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Auth.Basic.Username)
		logger.InfoContext(ctx, "Config: auth.basic.password", "value", masked)
	case AuthTypeAPIKey:
		logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Auth.APIKeys))
	}

	logger.InfoContext(ctx, "Config: search.index_url", "value", s.Search.IndexURL)
	logger.InfoContext(ctx, "Config: search.fetch_timeout", "value", s.Search.FetchTimeout)
	logger.InfoContext(ctx, "Config: search.max_results", "value", s.Search.MaxResults)
	logger.InfoContext(ctx, "Config: search.preload", "value", s.Search.Preload)

	logger.InfoContext(ctx, "Config: embedding.provider", "value", s.Embedding.Provider)
	if s.Embedding.Provider == EmbeddingProviderNone {
		return
	}
	if s.Embedding.BaseURL != "" {
		logger.InfoContext(ctx, "Config: embedding.base_url", "value", s.Embedding.BaseURL)
	}
	if s.Embedding.Model != "" {
		logger.InfoContext(ctx, "Config: embedding.model", "value", s.Embedding.Model)
	}
	logger.InfoContext(ctx, "Config: embedding.dimensions", "value", s.Embedding.Dimensions)
	if s.Embedding.APIKey != "" {
		logger.InfoContext(ctx, "Config: embedding.api_key", "value", masked)
	}
	logger.InfoContext(ctx, "Config: embedding.load_timeout", "value", s.Embedding.LoadTimeout)
	if s.Embedding.RateLimit > 0 {
		logger.InfoContext(ctx, "Config: embedding.rate_limit", "value", s.Embedding.RateLimit)
	}
	logger.InfoContext(ctx, "Config: embedding.cache_size", "value", s.Embedding.CacheSize)
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with masked data
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = masked
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.Any("basic", BasicAuthSettingsLogValue(s.Basic)),
		slog.Any("api_keys", keys),
	)
}

// BasicAuthSettingsLogValue returns a slog.Value for BasicAuthSettings with masked data
func BasicAuthSettingsLogValue(s BasicAuthSettings) slog.Value {
	return slog.GroupValue(
		slog.String("username", s.Username),
		slog.String("password", masked),
	)
}

// SearchSettingsLogValue returns a slog.Value for SearchSettings
func SearchSettingsLogValue(s SearchSettings) slog.Value {
	return slog.GroupValue(
		slog.String("index_url", s.IndexURL),
		slog.Duration("fetch_timeout", s.FetchTimeout),
		slog.Int("max_results", s.MaxResults),
		slog.Bool("preload", s.Preload),
	)
}

// EmbeddingSettingsLogValue returns a slog.Value for EmbeddingSettings with masked data
func EmbeddingSettingsLogValue(s EmbeddingSettings) slog.Value {
	apiKey := ""
	if s.APIKey != "" {
		apiKey = masked
	}
	return slog.GroupValue(
		slog.String("provider", s.Provider),
		slog.String("base_url", s.BaseURL),
		slog.String("model", s.Model),
		slog.Int("dimensions", s.Dimensions),
		slog.String("api_key", apiKey),
		slog.Duration("timeout", s.Timeout),
		slog.Duration("load_timeout", s.LoadTimeout),
		slog.Float64("rate_limit", s.RateLimit),
		slog.Int("cache_size", s.CacheSize),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.Any("auth", AuthSettingsLogValue(s.Auth)),
		slog.Any("search", SearchSettingsLogValue(s.Search)),
		slog.Any("embedding", EmbeddingSettingsLogValue(s.Embedding)),
	)
}
