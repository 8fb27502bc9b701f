package mcp

import (
	"context"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSearchKB_RequiresSpaceAndQuery(t *testing.T) {
	p := NewToolProvider(nil)

	res, data, err := p.handleSearchKB(context.Background(), &sdkmcp.CallToolRequest{}, SearchKBArgs{})
	require.NoError(t, err)
	assert.Nil(t, data)
	require.True(t, res.IsError)

	res, _, err = p.handleSearchKB(context.Background(), &sdkmcp.CallToolRequest{}, SearchKBArgs{Space: "docs"})
	require.NoError(t, err)
	assert.True(t, res.IsError, "query missing should still error")

	res, _, err = p.handleSearchKB(context.Background(), &sdkmcp.CallToolRequest{}, SearchKBArgs{Query: "hello"})
	require.NoError(t, err)
	assert.True(t, res.IsError, "space missing should still error")
}

func TestTextResult(t *testing.T) {
	r := textResult("hello")
	require.Len(t, r.Content, 1)
	tc, ok := r.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "hello", tc.Text)
	assert.False(t, r.IsError)
}

func TestErrorResult(t *testing.T) {
	r := errorResult("boom")
	require.Len(t, r.Content, 1)
	tc, ok := r.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "boom", tc.Text)
	assert.True(t, r.IsError)
}

func TestNewMCPServer_EmptyConfigBuildsServer(t *testing.T) {
	p := NewToolProvider(nil)
	server := p.NewMCPServer(ServerConfig{})
	assert.NotNil(t, server)
}
