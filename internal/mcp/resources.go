package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const tablesURI = "csvdeck://tables"

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			tablesURI,
			"Uploaded Tables",
			mcp.WithResourceDescription(
				"Every uploaded table with its columns, inferred types and row count.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleTablesResource,
	)
}

// handleTablesResource returns the table catalog as JSON.
func (s *MCPServer) handleTablesResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	b, err := json.MarshalIndent(s.tables.List(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tables: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      tablesURI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
