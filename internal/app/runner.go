package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"

	"github.com/sha1n/mcp-docsearch-server/internal/config"
	"github.com/sha1n/mcp-docsearch-server/internal/docsearch"
	mcputil "github.com/sha1n/mcp-docsearch-server/internal/mcp"
)

// ServerName is the MCP implementation name.
const ServerName = "docsearch-mcp"

// Components are the servable parts created at startup.
type Components struct {
	MCP *mcp.Server
	// API is the JSON HTTP API, mounted by the SSE server. May be nil.
	API http.Handler
}

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*Components, *config.Settings) error
	CreateServer      func(*config.Settings, string) (*Components, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateComponents,
	}
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	// Load settings
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// Validate settings for conflicting configurations
	if err := params.ValidSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Configure logging - always use stderr to avoid buffering issues
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting MCP docs search server", "version", version)
	config.Log(settings)

	components, cleanup, err := params.CreateServer(settings, version)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	// Start server
	if settings.Transport == "stdio" {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return components.MCP.Run(ctx, transport)
	}

	slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
	return params.StartSSEServer(components, settings)
}

// CreateComponents creates the docs search service, the MCP server with its
// tools registered, and the JSON API.
func CreateComponents(settings *config.Settings, version string) (*Components, func(), error) {
	svc, err := docsearch.NewService(settings, docsearch.WithLogger(slog.Default()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create docs search service: %w", err)
	}

	// Initialize in background context (not tied to request context)
	if err := svc.Initialize(context.Background()); err != nil {
		slog.Error("Docs search initialization failed", "error", err)
	}

	cleanup := func() {
		if err := svc.Close(); err != nil {
			slog.Error("Failed to close docs search service", "error", err)
		}
	}

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:    ServerName,
		Version: version,
		DocsSvc: svc,
	})

	return &Components{
		MCP: server,
		API: docsearch.NewHTTPHandler(svc),
	}, cleanup, nil
}
