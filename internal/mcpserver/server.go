package mcpserver

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ragidx/ragidx/internal/config"
	"github.com/ragidx/ragidx/internal/index"
	"github.com/ragidx/ragidx/internal/telemetry"
	"github.com/ragidx/ragidx/pkg/version"
)

// Server is the MCP server for ragidx. It bridges editor/agent clients
// (Claude Code, Cursor, ...) to the same Indexer the CLI uses.
type Server struct {
	mcp     *mcp.Server
	idx     *index.Indexer
	config  *config.Config
	logger  *slog.Logger
	metrics *telemetry.QueryMetrics

	rootPath string
}

// NewServer creates a new MCP server wrapping idx. rootPath is used only
// to relativize file paths in search output. metrics may be nil; an
// in-memory-only collector is substituted so searchHandler never needs a
// nil check.
func NewServer(idx *index.Indexer, cfg *config.Config, rootPath string, metrics *telemetry.QueryMetrics) (*Server, error) {
	if idx == nil {
		return nil, errors.New("indexer is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if metrics == nil {
		metrics = telemetry.NewQueryMetrics(nil)
	}

	s := &Server{
		idx:      idx,
		config:   cfg,
		rootPath: rootPath,
		logger:   slog.Default(),
		metrics:  metrics,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "ragidx",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying SDK server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "ragidx", version.Version
}

// registerTools registers the search and status tools.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search the local index for chunks relevant to a query. Returns source paths, scores, and matched content.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "status",
		Description: "Report index statistics: chunk/source counts, storage kind, embedding model, chunking config.",
	}, s.statusHandler)

	s.logger.Debug("mcp tools registered", slog.Int("count", 2))
}

// Serve runs the server over the stdio transport, the only one it uses:
// MCP clients spawn ragidx as a subprocess.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting mcp server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp server stopped")
	return nil
}

// Close flushes accumulated query telemetry. Call after Serve returns,
// before the caller closes the underlying collection.
func (s *Server) Close() error {
	return s.metrics.Close()
}

// relPath relativizes a source path to rootPath for friendlier output;
// falls back to the absolute path when it isn't under rootPath.
func (s *Server) relPath(source string) string {
	if s.rootPath == "" {
		return source
	}
	rel, err := filepath.Rel(s.rootPath, source)
	if err != nil || rel == "." {
		return source
	}
	return rel
}
