package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragidx/ragidx/internal/output"
)

func newCleanCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Discard the local index for the current project",
		Long: `Clean empties the vector collection, document store, and BM25 index
under .ragidx/, leaving the source tree untouched. The next 'ragidx index'
rebuilds from scratch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clean without --yes")
			}
			return runClean(cmd)
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion of the local index")

	return cmd
}

func runClean(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

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

	if err := collection.Reset(ctx); err != nil {
		return fmt.Errorf("reset collection: %w", err)
	}

	out.Success("Index cleared")
	return nil
}
