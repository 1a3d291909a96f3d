package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/repoingest/internal/app"
	"github.com/dshills/repoingest/internal/config"
	"github.com/dshills/repoingest/internal/indexer"
)

const (
	// ServerName is the MCP server name
	ServerName = "repoingest"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp    *server.MCPServer
	app    *app.App
	logger *slog.Logger

	lock    indexer.IndexLock
	running atomic.Pointer[indexer.Indexer] // set while an ingestion runs
}

// NewServer opens the configured storage and embedder and creates a server
// around them
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(a), nil
}

// New creates a server around already opened dependencies
func New(a *app.App) *Server {
	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion),
		app:    a,
		logger: a.Logger,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// Close releases the server's dependencies
func (s *Server) Close() error {
	if err := s.app.Close(); err != nil {
		return fmt.Errorf("failed to close server: %w", err)
	}
	return nil
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(ingestRepositoryTool(), s.handleIngestRepository)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
