package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragidx/ragidx/internal/mcpserver"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve search and status as MCP tools over stdio",
		Long: `mcp starts a Model Context Protocol server over stdio, exposing the
current project's index as "search" and "status" tools for editor and
agent clients. It does not re-index: run 'ragidx index' first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd)
		},
	}

	return cmd
}

func runMCP(cmd *cobra.Command) error {
	ctx := cmd.Context()

	root, err := projectRoot()
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	cfg := loadConfig(root)

	idx, collection, embedder, err := buildIndexer(ctx, root, cfg)
	if err != nil {
		return err
	}
	defer closeIndexerDeps(ctx, collection, embedder)

	metrics, err := buildQueryMetricsServer(collection)
	if err != nil {
		return fmt.Errorf("build query metrics: %w", err)
	}

	srv, err := mcpserver.NewServer(idx, cfg, root, metrics)
	if err != nil {
		return fmt.Errorf("create mcp server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	return srv.Serve(ctx)
}
