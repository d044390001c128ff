package docsearch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/mcp-docsearch-server/internal/domain"
	"github.com/sha1n/mcp-docsearch-server/internal/embedding"
	"github.com/sha1n/mcp-docsearch-server/internal/index"
	"github.com/sha1n/mcp-docsearch-server/internal/search"
)

// MaxToolResults caps the number of results a tool call may request.
const MaxToolResults = 50

// breadcrumbSeparator joins navigation labels.
const breadcrumbSeparator = " › "

// SearchArgument defines search parameters.
type SearchArgument struct {
	Query   string `json:"query" jsonschema:"Free-text search query"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 10, max 50)"`
	Version string `json:"version,omitempty" jsonschema:"Only search this documentation version (e.g. v1.0.0)"`
	Tab     string `json:"tab,omitempty" jsonschema:"Only search this navigation tab (e.g. Documentation)"`
}

// SearchHandler handles the search MCP tool.
type SearchHandler struct {
	service *Service
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service *Service) *SearchHandler {
	return &SearchHandler{
		service: service,
	}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	// An empty query is a prompt, not a failure
	if strings.TrimSpace(args.Query) == "" {
		return textResult("Enter a search query to find documentation sections."), nil, nil
	}

	if args.Limit < 0 {
		return errorResult("Limit must be a positive number"), nil, nil
	}
	limit := min(args.Limit, MaxToolResults)

	resp, err := h.service.Search(ctx, search.Request{
		Query:   args.Query,
		Limit:   limit,
		Version: args.Version,
		Tab:     args.Tab,
	})
	if err != nil {
		return searchErrorResult(err), nil, nil
	}

	return h.formatResults(resp), nil, nil
}

// searchErrorResult maps a search error to a tool error result.
func searchErrorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, index.ErrIndexUnavailable):
		return errorResult("Search is unavailable. The documentation index could not be loaded. Please try again later.")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errorResult("Search was cancelled")
	default:
		return errorResult(fmt.Sprintf("Search failed: %s", err))
	}
}

// formatResults formats ranked results for MCP response.
func (h *SearchHandler) formatResults(resp *search.Response) *mcp.CallToolResult {
	if len(resp.Results) == 0 {
		return textResult(fmt.Sprintf("No results found for query: %s", resp.Query))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d results for '%s' (%s search", resp.TotalMatches, resp.Query, resp.Mode))
	if resp.EmbeddingSource == embedding.SourceFallback {
		sb.WriteString(", approximate")
	}
	sb.WriteString("):\n\n")

	for i, r := range resp.Results {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, strings.Join(r.Chunk.Breadcrumb(), breadcrumbSeparator)))
		sb.WriteString(fmt.Sprintf("**Link**: %s\n", r.Chunk.Link()))
		sb.WriteString(fmt.Sprintf("**Score**: %.4f\n", r.Score))
		if len(r.Matches) > 0 {
			sb.WriteString(fmt.Sprintf("**Matches**: %s\n", strings.Join(r.Matches, ", ")))
		}
		sb.WriteString("\n")
		writeQuoted(&sb, r.Preview)
		sb.WriteString("\n")
	}

	if resp.TotalMatches > len(resp.Results) {
		sb.WriteString(fmt.Sprintf("... and %d more results\n", resp.TotalMatches-len(resp.Results)))
	}

	return textResult(sb.String())
}

// writeQuoted writes text as a markdown block quote.
func writeQuoted(sb *strings.Builder, text string) {
	for _, line := range strings.Split(text, "\n") {
		sb.WriteString("> ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_docs",
		Description: "Semantic search across the documentation site. Returns ranked sections with links and previews.",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, service *Service) {
	handler := NewSearchHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// pageHeading returns the heading for a chunk within a page listing.
func pageHeading(c *domain.IndexChunk) string {
	if c.SectionTitle == "" || c.SectionTitle == c.PageTitle {
		return ""
	}
	return c.SectionTitle
}
