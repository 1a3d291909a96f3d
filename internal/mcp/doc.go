// Package mcp implements the Model Context Protocol (MCP) server for repoingest.
//
// The MCP server exposes two tools:
//   - ingest_repository: chunk, embed and store a repository
//   - get_status: report collection statistics and whether an ingestion runs
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	repoingest serve
//
// It then listens on stdin for MCP protocol messages and writes responses to
// stdout. Logs go to stderr.
//
// # Tool: ingest_repository
//
//	Request:
//	{
//	  "name": "ingest_repository",
//	  "arguments": {
//	    "path": "/path/to/repo",
//	    "extensions": "go,py",
//	    "max_tokens": 300000,
//	    "collection": "code_index"
//	  }
//	}
//
//	Response:
//	{
//	  "ingested": true,
//	  "collection": "code_index",
//	  "files_processed": 42,
//	  "chunks_produced": 318,
//	  "splits_performed": 1,
//	  "batches_dispatched": 2,
//	  "duration_ms": 5230
//	}
//
// Only one ingestion runs at a time. A second request while one is in
// progress fails with ErrorCodeIndexingInProgress.
//
// # Tool: get_status
//
//	Request:
//	{
//	  "name": "get_status",
//	  "arguments": {"collection": "code_index"}
//	}
//
// The response carries the collection's model, generation and last run
// time, file and chunk counts, and index health.
//
// # Error Codes
//
//   - -32602: invalid parameters
//   - -32603: internal error
//   - -32002: ingestion already in progress
//   - -32003: a batch failed to dispatch; the run stopped at that batch
//   - -32004: the collection was built with another embedding model
package mcp
