package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable the server reads.
const EnvPrefix = "DOCSEARCH_MCP"

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// Embedding provider constants
const (
	EmbeddingProviderNone   = "none"
	EmbeddingProviderOllama = "ollama"
	EmbeddingProviderOpenAI = "openai"
)

// DefaultIndexURL is where the documentation site serves its search index
// during local development.
const DefaultIndexURL = "http://localhost:5173/search-index.json"

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// SearchSettings configuration for the search index and ranking
type SearchSettings struct {
	IndexURL     string        `mapstructure:"index_url"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxResults   int           `mapstructure:"max_results"`
	Preload      bool          `mapstructure:"preload"`
}

// EmbeddingSettings configuration for the query embedding model
type EmbeddingSettings struct {
	Provider    string        `mapstructure:"provider"` // none, ollama or openai
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Dimensions  int           `mapstructure:"dimensions"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
	RateLimit   float64       `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	CacheSize   int           `mapstructure:"cache_size"`
}

// Settings application settings
type Settings struct {
	Transport string            `mapstructure:"transport"`
	Host      string            `mapstructure:"host"`
	Port      int               `mapstructure:"port"`
	Auth      AuthSettings      `mapstructure:"auth"`
	Search    SearchSettings    `mapstructure:"search"`
	Embedding EmbeddingSettings `mapstructure:"embedding"`
}

// settingKeys maps viper keys to their CLI flag names.
var settingKeys = []struct {
	key  string
	flag string
}{
	{"transport", "transport"},
	{"host", "host"},
	{"port", "port"},
	{"auth.type", "auth-type"},
	{"auth.basic.username", "auth-basic-username"},
	{"auth.basic.password", "auth-basic-password"},
	{"auth.api_keys", "auth-api-keys"},
	{"search.index_url", "index-url"},
	{"search.fetch_timeout", "index-fetch-timeout"},
	{"search.max_results", "max-results"},
	{"search.preload", "preload"},
	{"embedding.provider", "embedding-provider"},
	{"embedding.base_url", "embedding-base-url"},
	{"embedding.model", "embedding-model"},
	{"embedding.dimensions", "embedding-dimensions"},
	{"embedding.api_key", "embedding-api-key"},
	{"embedding.timeout", "embedding-timeout"},
	{"embedding.load_timeout", "embedding-load-timeout"},
	{"embedding.rate_limit", "embedding-rate-limit"},
	{"embedding.cache_size", "embedding-cache-size"},
}

// EnvVar returns the environment variable name for a viper key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("auth.type", AuthTypeNone)

	// Search defaults
	v.SetDefault("search.index_url", DefaultIndexURL)
	v.SetDefault("search.fetch_timeout", 30*time.Second)
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.preload", false)

	// Embedding defaults
	v.SetDefault("embedding.provider", EmbeddingProviderOllama)
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("embedding.load_timeout", 5*time.Minute)
	v.SetDefault("embedding.rate_limit", 0.0)
	v.SetDefault("embedding.cache_size", 1000)

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind nested keys explicitly so Unmarshal sees env-only values
	for _, s := range settingKeys {
		_ = v.BindEnv(s.key, EnvVar(s.key))
	}

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		for _, s := range settingKeys {
			if f := flags.Lookup(s.flag); f != nil {
				_ = v.BindPFlag(s.key, f)
			}
		}
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Handle explicit parsing of API keys if provided via env var as comma-separated string
	apiKeysEnv := os.Getenv(EnvVar("auth.api_keys"))
	if apiKeysEnv != "" {
		if len(settings.Auth.APIKeys) == 0 || (len(settings.Auth.APIKeys) == 1 && strings.Contains(settings.Auth.APIKeys[0], ",")) {
			settings.Auth.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}

	// Trim spaces from API keys
	for i := range settings.Auth.APIKeys {
		settings.Auth.APIKeys[i] = strings.TrimSpace(settings.Auth.APIKeys[i])
	}
	settings.Auth.APIKeys = filterEmptyStrings(settings.Auth.APIKeys)

	settings.Search.IndexURL = expandHomeDir(strings.TrimSpace(settings.Search.IndexURL))
	settings.Embedding.Provider = strings.ToLower(strings.TrimSpace(settings.Embedding.Provider))

	return &settings, nil
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for conflicting configurations.
// Returns an error if the settings contain mutually exclusive or incomplete config.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case "stdio", "sse":
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	hasBasicCreds := s.Auth.Basic.Username != "" || s.Auth.Basic.Password != ""
	hasAPIKeys := len(s.Auth.APIKeys) > 0

	switch s.Auth.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if s.Auth.Basic.Username == "" || s.Auth.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + s.Auth.Type)
	}

	if err := validateSearchSettings(&s.Search); err != nil {
		return err
	}

	return validateEmbeddingSettings(&s.Embedding)
}

// validateSearchSettings validates the index and ranking configuration
func validateSearchSettings(s *SearchSettings) error {
	if s.IndexURL == "" {
		return errors.New("index-url cannot be empty")
	}

	if strings.Contains(s.IndexURL, "://") {
		u, err := url.Parse(s.IndexURL)
		if err != nil {
			return fmt.Errorf("index-url is not a valid URL: %w", err)
		}
		switch u.Scheme {
		case "http", "https", "file":
			// valid
		default:
			return errors.New("index-url scheme must be http, https or file, got: " + u.Scheme)
		}
	}

	if s.FetchTimeout <= 0 {
		return errors.New("index-fetch-timeout must be positive")
	}

	if s.MaxResults <= 0 {
		return errors.New("max-results must be positive")
	}

	return nil
}

// validateEmbeddingSettings validates the embedding provider configuration
func validateEmbeddingSettings(e *EmbeddingSettings) error {
	switch e.Provider {
	case EmbeddingProviderNone:
		return nil
	case EmbeddingProviderOllama:
		// Base URL and model have provider defaults
	case EmbeddingProviderOpenAI:
		if e.APIKey == "" {
			return errors.New("embedding-provider 'openai' requires embedding-api-key")
		}
	default:
		return errors.New("unknown embedding-provider: " + e.Provider)
	}

	if e.Dimensions <= 0 {
		return errors.New("embedding-dimensions must be positive")
	}

	if e.Timeout <= 0 {
		return errors.New("embedding-timeout must be positive")
	}

	if e.LoadTimeout <= 0 {
		return errors.New("embedding-load-timeout must be positive")
	}

	if e.RateLimit < 0 {
		return errors.New("embedding-rate-limit cannot be negative")
	}

	if e.CacheSize < 0 {
		return errors.New("embedding-cache-size cannot be negative")
	}

	return nil
}
