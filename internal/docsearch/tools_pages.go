package docsearch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/mcp-docsearch-server/internal/index"
)

// ListPagesArgument defines page listing filters.
type ListPagesArgument struct {
	Version string `json:"version,omitempty" jsonschema:"Only list pages of this documentation version"`
	Tab     string `json:"tab,omitempty" jsonschema:"Only list pages of this navigation tab"`
}

// ListPagesHandler handles the page listing MCP tool.
type ListPagesHandler struct {
	service *Service
}

// NewListPagesHandler creates a new page listing handler.
func NewListPagesHandler(service *Service) *ListPagesHandler {
	return &ListPagesHandler{
		service: service,
	}
}

// Handle lists documentation pages.
func (h *ListPagesHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ListPagesArgument) (*mcp.CallToolResult, any, error) {
	pages, err := h.service.Pages(ctx, args.Version, args.Tab)
	if err != nil {
		if errors.Is(err, index.ErrIndexUnavailable) {
			return errorResult("Page listing is unavailable. The documentation index could not be loaded. Please try again later."), nil, nil
		}
		return errorResult(fmt.Sprintf("Listing pages failed: %s", err)), nil, nil
	}

	if len(pages) == 0 {
		return textResult("No pages found"), nil, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d pages:\n\n", len(pages)))
	for _, p := range pages {
		labels := make([]string, 0, 2)
		for _, l := range []string{p.Version, p.Tab} {
			if l != "" {
				labels = append(labels, l)
			}
		}
		sb.WriteString(fmt.Sprintf("- **%s** `%s`", p.Title, p.Path))
		if len(labels) > 0 {
			sb.WriteString(fmt.Sprintf(" (%s)", strings.Join(labels, breadcrumbSeparator)))
		}
		sb.WriteString(fmt.Sprintf(", %d sections\n", p.Chunks))
	}

	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ListPagesHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_pages",
		Description: "List documentation pages, optionally filtered by version and tab",
	}
}

// RegisterListPagesTool registers the page listing tool with an MCP server.
func RegisterListPagesTool(server *mcp.Server, service *Service) {
	handler := NewListPagesHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
