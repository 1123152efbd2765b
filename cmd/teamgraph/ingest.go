package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/teamgraph/internal/config"
	"github.com/rohankatakam/teamgraph/internal/graph"
	"github.com/rohankatakam/teamgraph/internal/ingestion"
	"github.com/rohankatakam/teamgraph/internal/models"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a formatted document or staged records into Neo4j",
	Long: `Build the knowledge graph from a formatted JSON document or from raw
records staged by 'teamgraph fetch --stage'.

Every write is an idempotent merge, so re-running an ingest converges to the
same graph.

Examples:
  teamgraph ingest --input doc.json --create-indexes
  teamgraph ingest --from-staging --embed --xref people.yaml
  teamgraph ingest --input doc.json --dry-run`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("input", "", "formatted JSON document to ingest")
	ingestCmd.Flags().Bool("from-staging", false, "ingest pending records from the staging store")
	ingestCmd.Flags().Int("limit", 0, "maximum staged records to ingest (0 for all)")
	ingestCmd.Flags().Bool("clear-db", false, "delete every node and relationship first")
	ingestCmd.Flags().Bool("create-indexes", false, "create vector indexes for embedded labels")
	ingestCmd.Flags().Bool("include-all-messages", false, "keep channel join notifications")
	ingestCmd.Flags().Bool("dry-run", false, "ingest into an in-memory graph and print the summary")
	ingestCmd.Flags().String("xref", "", "identity cross-reference YAML (github_login/slack_handle)")
	ingestCmd.Flags().Bool("embed", false, "compute embeddings before import")
	ingestCmd.MarkFlagsMutuallyExclusive("input", "from-staging")
	ingestCmd.MarkFlagsOneRequired("input", "from-staging")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	input, _ := cmd.Flags().GetString("input")
	fromStaging, _ := cmd.Flags().GetBool("from-staging")
	limit, _ := cmd.Flags().GetInt("limit")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	xrefPath, _ := cmd.Flags().GetString("xref")

	opts := ingestion.Options{}
	opts.ClearFirst, _ = cmd.Flags().GetBool("clear-db")
	opts.CreateIndexes, _ = cmd.Flags().GetBool("create-indexes")
	opts.IncludeAllMessages, _ = cmd.Flags().GetBool("include-all-messages")
	opts.Embed, _ = cmd.Flags().GetBool("embed")
	if cfg.Ingest.IncludeAllMessages {
		opts.IncludeAllMessages = true
	}

	var store graph.Store
	if dryRun {
		logger.Info("Dry run: writing to an in-memory graph")
		store = graph.NewMemoryStore()
	} else {
		if err := validate(config.ValidationContextIngest); err != nil {
			return err
		}
		neo, err := openGraph(ctx)
		if err != nil {
			return err
		}
		defer neo.Close(ctx)
		store = neo
	}

	xref, err := loadCrossReference(xrefPath)
	if err != nil {
		return err
	}
	orchOpts := []ingestion.Option{ingestion.WithCrossReference(xref)}

	if opts.Embed {
		embedder, closeCache, err := openEmbedder(ctx)
		if err != nil {
			return err
		}
		defer closeCache()
		orchOpts = append(orchOpts, ingestion.WithEmbedder(embedder))
	}

	var result *ingestion.Result
	if fromStaging {
		staging, err := openStaging()
		if err != nil {
			return err
		}
		defer staging.Close()
		orchOpts = append(orchOpts, ingestion.WithStaging(staging))
		result, err = ingestion.NewOrchestrator(store, logger, orchOpts...).IngestStaged(ctx, limit, opts)
		if err != nil {
			return err
		}
	} else {
		doc, err := models.LoadDocument(input)
		if err != nil {
			return err
		}
		result, err = ingestion.NewOrchestrator(store, logger, orchOpts...).IngestDocument(ctx, doc, opts)
		if err != nil {
			return err
		}
	}

	printIngestResult(cmd, result)
	return nil
}

func printIngestResult(cmd *cobra.Command, r *ingestion.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ingestion complete in %s\n", r.Duration.Round(time.Millisecond))
	if r.Processed > 0 {
		fmt.Fprintf(out, "  staged records: %d\n", r.Processed)
	}
	fmt.Fprintf(out, "  nodes: %d, relationships: %d\n", r.Summary.TotalNodes(), r.Summary.TotalEdges())
	printCounts(cmd, "  ", r.Summary.Nodes)
	printCounts(cmd, "  ", r.Summary.Edges)
	fmt.Fprintf(out, "  people linked: %d, messages resolved: %d, unresolved: %d\n",
		r.Identity.PeopleLinked, r.Identity.MessagesResolved, r.Identity.MessagesUnresolved)
	fmt.Fprintf(out, "  duplicates collapsed: %d, join messages filtered: %d\n", r.Dedup.Collapsed, r.JoinsFiltered)
	if r.Embedding.Embedded+r.Embedding.Cached > 0 {
		fmt.Fprintf(out, "  embedded: %d, cached: %d, empty: %d\n", r.Embedding.Embedded, r.Embedding.Cached, r.Embedding.Empty)
	}
	if len(r.Dropped) > 0 {
		dropped := make(map[string]int, len(r.Dropped))
		for label, n := range r.Dropped {
			dropped[string(label)] = n
		}
		fmt.Fprintln(out, "  records without id:")
		printCounts(cmd, "    ", dropped)
	}
	if len(r.LinkSkipped) > 0 {
		fmt.Fprintln(out, "  skipped links:")
		printCounts(cmd, "    ", r.LinkSkipped)
	}
}

func printCounts(cmd *cobra.Command, indent string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "%s%-40s %d\n", indent, k, counts[k])
	}
}
