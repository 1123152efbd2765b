package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/teamgraph/internal/config"
	"github.com/rohankatakam/teamgraph/internal/llm"
	"github.com/rohankatakam/teamgraph/internal/models"
	"github.com/rohankatakam/teamgraph/internal/rag"
)

var routeCmd = &cobra.Command{
	Use:   "route <query>",
	Short: "Show which entity type a question would be searched in",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRoute,
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question from the graph",
	Long: `Route the question to an entity type, search that type's vector index
and generate an answer from the retrieved nodes.

With --retrieve-only (or no generation key) the retrieved nodes are printed
without an answer.`,
	Example: `  teamgraph query "Who wrote the OAuth integration?"
  teamgraph query --top-k 10 "What did people say in slack about the outage?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().Int("top-k", 0, "number of nodes to retrieve (default: llm.top_k)")
	queryCmd.Flags().Bool("retrieve-only", false, "skip answer generation")
}

func runRoute(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := validate(config.ValidationContextIngest); err != nil {
		return err
	}

	store, err := openGraph(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	decision, available, err := rag.NewService(store, nil, nil, 0).Route(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if decision.Found {
		fmt.Fprintf(out, "Label:  %s\nIndex:  %s\n", decision.Label, decision.IndexName)
	} else {
		fmt.Fprintln(out, "Label:  (none)")
	}
	fmt.Fprintf(out, "Reason: %s\n", decision.Reason)
	fmt.Fprintln(out, "Embedded nodes:")
	for _, label := range models.EmbeddedLabels {
		fmt.Fprintf(out, "  %-12s %d\n", label, available[label])
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	retrieveOnly, _ := cmd.Flags().GetBool("retrieve-only")
	vctx := config.ValidationContextQuery
	if retrieveOnly {
		vctx = config.ValidationContextIngest
	}
	if err := validate(vctx); err != nil {
		return err
	}

	store, err := openGraph(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	embedder, closeCache, err := openEmbedder(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	var generator llm.Generator
	if !retrieveOnly {
		if generator, err = openGenerator(ctx); err != nil {
			return err
		}
	}

	topK, _ := cmd.Flags().GetInt("top-k")
	if topK <= 0 {
		topK = cfg.LLM.TopK
	}

	ans, err := rag.NewService(store, embedder, generator, topK).Ask(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Routed to %s: %s\n\n", labelOrNone(ans.Decision.Label), ans.Decision.Reason)
	if ans.Answer != "" {
		fmt.Fprintln(out, ans.Answer)
		fmt.Fprintln(out)
	}
	if len(ans.Hits) > 0 {
		fmt.Fprintln(out, "Sources:")
		for _, h := range ans.Hits {
			fmt.Fprintf(out, "  [%s %s] score=%.3f\n", h.Label, h.ID, h.Score)
		}
	}
	return nil
}

func labelOrNone(l models.Label) string {
	if l == "" {
		return "(none)"
	}
	return string(l)
}
