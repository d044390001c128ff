package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")

	// Search index
	flags.StringP("index-url", "i", "", "Search index location: http(s) URL, file:// URL or local path")
	flags.Duration("index-fetch-timeout", 0, "Timeout for fetching the search index")
	flags.IntP("max-results", "n", 0, "Default number of search results")
	flags.Bool("preload", false, "Load the search index and embedding model at startup")

	// Query embedding
	flags.StringP("embedding-provider", "e", "", "Embedding provider: none, ollama, or openai")
	flags.String("embedding-base-url", "", "Embedding provider base URL")
	flags.StringP("embedding-model", "m", "", "Embedding model name")
	flags.Int("embedding-dimensions", 0, "Embedding vector dimensions")
	flags.String("embedding-api-key", "", "Embedding provider API key")
	flags.Duration("embedding-timeout", 0, "Timeout for a single embedding request")
	flags.Duration("embedding-load-timeout", 0, "Timeout for loading the embedding model")
	flags.Float64("embedding-rate-limit", 0, "Maximum embedding requests per second (0 = unlimited)")
	flags.Int("embedding-cache-size", 0, "Number of query embeddings to cache (0 = disabled)")
}
