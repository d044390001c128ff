package docsearch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/mcp-docsearch-server/internal/index"
)

// ReadArgument defines read parameters.
type ReadArgument struct {
	Path    string `json:"path" jsonschema:"Page path as returned by search_docs (e.g. /v1.0.0/documentation/intro)"`
	Version string `json:"version,omitempty" jsonschema:"Documentation version, when the path is shared across versions"`
}

// ReadHandler handles the read MCP tool.
type ReadHandler struct {
	service *Service
}

// NewReadHandler creates a new read handler.
func NewReadHandler(service *Service) *ReadHandler {
	return &ReadHandler{
		service: service,
	}
}

// Handle returns the full text of a page assembled from its chunks.
func (h *ReadHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ReadArgument) (*mcp.CallToolResult, any, error) {
	// Links carry an in-page anchor that is not part of the page path
	path, _, _ := strings.Cut(strings.TrimSpace(args.Path), "#")
	if path == "" {
		return errorResult("Path cannot be empty"), nil, nil
	}

	chunks, err := h.service.PageChunks(ctx, path, args.Version)
	if err != nil {
		if errors.Is(err, index.ErrIndexUnavailable) {
			return errorResult("Read is unavailable. The documentation index could not be loaded. Please try again later."), nil, nil
		}
		return errorResult(fmt.Sprintf("Read failed: %s", err)), nil, nil
	}

	if len(chunks) == 0 {
		return errorResult(fmt.Sprintf("Page not found: %s", path)), nil, nil
	}

	first := chunks[0]
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n", first.PageTitle))
	sb.WriteString(fmt.Sprintf("**Path**: %s\n", first.PagePath))
	if first.Version != "" {
		sb.WriteString(fmt.Sprintf("**Version**: %s\n", first.Version))
	}
	if first.Tab != "" {
		sb.WriteString(fmt.Sprintf("**Tab**: %s\n", first.Tab))
	}

	for _, c := range chunks {
		sb.WriteString("\n")
		if heading := pageHeading(c); heading != "" {
			sb.WriteString(fmt.Sprintf("## %s\n", heading))
			if c.HeadingID != "" {
				sb.WriteString(fmt.Sprintf("_%s_\n", c.Link()))
			}
			sb.WriteString("\n")
		}
		sb.WriteString(c.Content)
		sb.WriteString("\n")
	}

	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ReadHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "read_page",
		Description: "Read the full text of a documentation page by its path",
	}
}

// RegisterReadTool registers the read tool with an MCP server.
func RegisterReadTool(server *mcp.Server, service *Service) {
	handler := NewReadHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
