package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/teamgraph/internal/config"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every node and relationship in the graph",
	Long: `Delete every node and relationship. Constraints and vector indexes are
kept, so a following ingest does not need --create-indexes.`,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().Bool("yes", false, "confirm deletion")
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	confirmed, _ := cmd.Flags().GetBool("yes")
	if !confirmed {
		return fmt.Errorf("refusing to clear %s without --yes", cfg.Neo4j.URI)
	}
	if err := validate(config.ValidationContextIngest); err != nil {
		return err
	}

	store, err := openGraph(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	if err := store.Clear(ctx); err != nil {
		return err
	}
	logger.WithField("uri", cfg.Neo4j.URI).Warn("Graph cleared")
	return nil
}
