// Package mcp exposes the Retriever as an MCP (Model Context Protocol) tool
// surface, so an external agent can search a kb space the same way a
// human would via the HTTP search endpoint. Grounded on the teacher's
// pkg/mcp/tools: a ToolProvider wrapping a single backing client,
// mcp.AddTool per capability, and the textResult/errorResult envelope
// shape, generalized from a Kubernetes activity API client to a
// Retriever.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/yaccii-voc/kbcore/internal/retriever"
)

// ToolProvider wraps the Retriever and exposes its search capability as MCP
// tools.
type ToolProvider struct {
	retriever *retriever.Retriever
}

func NewToolProvider(r *retriever.Retriever) *ToolProvider {
	return &ToolProvider{retriever: r}
}

// ServerConfig mirrors server identity reported to MCP clients.
type ServerConfig struct {
	Name    string
	Version string
}

// NewMCPServer creates an MCP server with the retrieval tool registered.
func (p *ToolProvider) NewMCPServer(cfg ServerConfig) *sdkmcp.Server {
	if cfg.Name == "" {
		cfg.Name = "kbcore"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil)
	p.RegisterTools(server)
	return server
}

// RegisterTools registers all retrieval tools with an MCP server.
func (p *ToolProvider) RegisterTools(server *sdkmcp.Server) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "search_kb",
		Description: "Search a knowledge base space for chunks relevant to a query, using hybrid vector+BM25 retrieval with per-document diversity capping. Use this to ground an answer in ingested document content.",
	}, p.handleSearchKB)
}

// SearchKBArgs are the arguments for the search_kb tool.
type SearchKBArgs struct {
	Space   string `json:"space" jsonschema:"description=Knowledge base space to search within. Required."`
	Query   string `json:"query" jsonschema:"description=Natural-language search query. Required."`
	TopK    int    `json:"topK,omitempty" jsonschema:"description=Maximum results to return (default 10, max 50)"`
	Backend string `json:"backend,omitempty" jsonschema:"description=Search backend: 'vector', 'bm25', or 'hybrid' (default: hybrid)"`
}

func (p *ToolProvider) handleSearchKB(ctx context.Context, req *sdkmcp.CallToolRequest, args SearchKBArgs) (*sdkmcp.CallToolResult, any, error) {
	if args.Space == "" || args.Query == "" {
		return errorResult("space and query are both required"), nil, nil
	}
	topK := args.TopK
	if topK <= 0 {
		topK = 10
	}
	if topK > 50 {
		topK = 50
	}
	backend := retriever.BackendHybrid
	switch args.Backend {
	case "vector":
		backend = retriever.BackendVector
	case "bm25":
		backend = retriever.BackendBM25
	case "", "hybrid":
		backend = retriever.BackendHybrid
	}

	hits, err := p.retriever.Search(ctx, args.Space, args.Query, topK, backend, retriever.Options{
		VectorEnabled: true, BM25Enabled: true, MaxPerDoc: 3,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil, nil
	}

	results := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		results = append(results, map[string]any{
			"chunkId":      h.ChunkID,
			"documentId":   h.DocumentID,
			"score":        h.Score,
			"content":      h.Content,
			"indexVersion": h.IndexVersion,
			"locator":      h.Locator,
		})
	}

	output := map[string]any{"count": len(results), "results": results}
	body, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to format results: %v", err)), nil, nil
	}
	return textResult(string(body)), nil, nil
}

func textResult(text string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}}}
}

func errorResult(message string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{IsError: true, Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: message}}}
}
