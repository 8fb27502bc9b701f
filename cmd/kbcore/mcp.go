package main

import (
	"context"
	"fmt"
	"os"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/yaccii-voc/kbcore/internal/config"
	"github.com/yaccii-voc/kbcore/internal/mcp"
	"github.com/yaccii-voc/kbcore/internal/version"
)

// NewMCPCommand creates the mcp subcommand that starts the MCP server over
// stdio, following cmd/activity/mcp.go's RunMCPServer shape.
func NewMCPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server exposing search_kb over stdio",
		Long: `Start an MCP (Model Context Protocol) server exposing the hybrid
retriever as a single search_kb tool, for AI assistants that want to ground
answers in ingested document content.

Example configuration for Claude Desktop (claude_desktop_config.json):
  {
    "mcpServers": {
      "kbcore": {
        "command": "kbcore",
        "args": ["mcp"]
      }
    }
  }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunMCPServer(cmd.Context())
		},
	}
	return cmd
}

// RunMCPServer starts the MCP server with a retriever built from the
// configured vector/text index backends.
func RunMCPServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("mcp: load config: %w", err)
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	vector, err := buildVectorIndex(cfg)
	if err != nil {
		return fmt.Errorf("mcp: build vector index: %w", err)
	}
	text, err := buildTextIndex(cfg)
	if err != nil {
		return fmt.Errorf("mcp: build text index: %w", err)
	}

	r := buildRetriever(cfg, vector, text, buildEmbedder(cfg), st)
	provider := mcp.NewToolProvider(r)
	server := provider.NewMCPServer(mcp.ServerConfig{Name: "kbcore", Version: version.Version})

	fmt.Fprintln(os.Stderr, "Starting kbcore MCP server on stdio...")
	return server.Run(ctx, &sdkmcp.StdioTransport{})
}
