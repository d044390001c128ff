package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/mcp-docsearch-server/internal/docsearch"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string
	DocsSvc *docsearch.Service
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.DocsSvc != nil {
		docsearch.RegisterSearchTool(s, cfg.DocsSvc)
		docsearch.RegisterReadTool(s, cfg.DocsSvc)
		docsearch.RegisterListPagesTool(s, cfg.DocsSvc)
	}

	return s
}
