package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// ingestRepositoryTool returns the tool definition for ingest_repository
func ingestRepositoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_repository",
		Description: "Chunk, embed and store the source files of a repository",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the repository root",
				},
				"extensions": map[string]interface{}{
					"type":        "string",
					"description": "Comma-separated file extensions to ingest (e.g. \"go,py\"); defaults to the server configuration",
				},
				"max_tokens": map[string]interface{}{
					"type":        "integer",
					"description": "Token ceiling per chunk and per embedding request",
					"minimum":     1,
				},
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Collection to write into; defaults to the server configuration",
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query ingestion status and statistics for a collection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Collection name; defaults to the server configuration",
				},
			},
		},
	}
}
