package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/repoingest/internal/app"
	"github.com/dshills/repoingest/internal/config"
	"github.com/dshills/repoingest/internal/indexer"
	"github.com/dshills/repoingest/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another ingestion is already running
	ErrorCodeDispatchFailed     = -32003 // The embedding sink rejected a batch
	ErrorCodeCollectionMismatch = -32004 // Collection built with another embedding model
)

// handleIngestRepository handles the ingest_repository tool invocation
func (s *Server) handleIngestRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	opts := app.RunOptions{
		Collection: getStringDefault(args, "collection", ""),
		MaxTokens:  getIntDefault(args, "max_tokens", 0),
	}
	if exts := getStringDefault(args, "extensions", ""); exts != "" {
		opts.Extensions = config.ParseExtensions(exts)
		if len(opts.Extensions) == 0 {
			return nil, newMCPError(ErrorCodeInvalidParams, "extensions must name at least one extension", map[string]interface{}{
				"param": "extensions",
				"value": exts,
			})
		}
	}
	if _, present := args["max_tokens"]; present && opts.MaxTokens < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "max_tokens must be a positive integer", map[string]interface{}{
			"param": "max_tokens",
			"value": args["max_tokens"],
		})
	}

	if !s.lock.TryAcquire() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "an ingestion is already in progress", nil)
	}
	defer s.lock.Release()

	idx, sink, err := s.app.NewIndexer(opts)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to create indexer", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.running.Store(idx)
	defer s.running.Store(nil)

	s.logger.Info("ingest requested", "path", path, "collection", opts.Collection, "max_tokens", opts.MaxTokens)

	summary, err := idx.Run(ctx, path)
	if err != nil {
		return nil, ingestError(err, summary)
	}

	response := map[string]interface{}{
		"ingested":           true,
		"collection":         sink.Collection().Name,
		"files_processed":    summary.FilesProcessed,
		"files_skipped":      summary.FilesSkipped,
		"chunks_produced":    summary.ChunksProduced,
		"empty_chunks":       summary.EmptySkipped,
		"splits_performed":   summary.SplitsPerformed,
		"pieces_from_splits": summary.PiecesFromSplits,
		"batches_dispatched": summary.BatchesDispatched,
		"tokens":             summary.Tokens,
		"duration_ms":        summary.Duration.Milliseconds(),
	}
	if summary.ChunksProduced == 0 {
		response["message"] = "No files indexed."
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// ingestError maps a failed run to an MCP error
func ingestError(err error, summary *indexer.Summary) error {
	var dispatchErr *indexer.DispatchError
	switch {
	case errors.As(err, &dispatchErr):
		data := map[string]interface{}{
			"batch":  dispatchErr.Batch,
			"chunks": dispatchErr.Chunks,
			"error":  dispatchErr.Err.Error(),
		}
		if summary != nil {
			data["batches_dispatched"] = summary.BatchesDispatched
		}
		return newMCPError(ErrorCodeDispatchFailed, "ingestion stopped at a failed batch", data)
	case errors.Is(err, indexer.ErrCollectionMismatch):
		return newMCPError(ErrorCodeCollectionMismatch, "collection uses a different embedding model", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		return newMCPError(ErrorCodeInternalError, "ingestion failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	name := getStringDefault(args, "collection", "")
	if name == "" {
		name = s.app.Config.CollectionName
	}

	ingest := map[string]interface{}{
		"in_progress": s.lock.Held(),
	}
	if idx := s.running.Load(); idx != nil {
		ingest["state"] = idx.State().String()
	}

	collection, err := s.app.Storage.GetCollection(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		response := map[string]interface{}{
			"indexed":    false,
			"collection": name,
			"ingest":     ingest,
			"message":    "Collection not indexed. Use ingest_repository to ingest a repository.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get collection", map[string]interface{}{
			"error": err.Error(),
		})
	}

	status, err := s.app.Storage.GetStatus(ctx, collection.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	lastIndexed := ""
	if !collection.LastIndexedAt.IsZero() {
		lastIndexed = collection.LastIndexedAt.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"indexed": true,
		"ingest":  ingest,
		"collection": map[string]interface{}{
			"name":            collection.Name,
			"root_path":       collection.RootPath,
			"provider":        collection.Provider,
			"model":           collection.Model,
			"dimension":       collection.Dimension,
			"generation":      collection.Generation,
			"last_indexed_at": lastIndexed,
		},
		"statistics": map[string]interface{}{
			"files_count":      status.FilesCount,
			"chunks_count":     status.ChunksCount,
			"split_chunks":     status.SplitChunks,
			"embeddings_count": status.EmbeddingsCount,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"embeddings_complete":  status.Health.EmbeddingsComplete,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
