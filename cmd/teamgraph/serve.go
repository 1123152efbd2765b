package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/teamgraph/internal/config"
	"github.com/rohankatakam/teamgraph/internal/mcp"
	"github.com/rohankatakam/teamgraph/internal/metrics"
	"github.com/rohankatakam/teamgraph/internal/rag"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve Prometheus metrics and, optionally, MCP tools on stdio",
	Long: `Expose /metrics and /healthz. With --mcp, also serve the route, query
and graph_stats tools to an MCP client over stdin/stdout; logs stay on stderr.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("metrics-addr", "", "metrics listen address (default: metrics.addr)")
	serveCmd.Flags().Bool("mcp", false, "serve MCP tools on stdio")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	withMCP, _ := cmd.Flags().GetBool("mcp")
	if addr == "" && !withMCP {
		return fmt.Errorf("nothing to serve: set --metrics-addr or --mcp")
	}

	g, ctx := errgroup.WithContext(ctx)

	if addr != "" {
		recorder := metrics.NewPrometheusRecorder()
		g.Go(func() error { return recorder.Serve(ctx, addr) })
		logger.WithField("addr", addr).Info("Serving metrics")
	}

	if withMCP {
		if err := validate(config.ValidationContextIngest); err != nil {
			return err
		}
		store, err := openGraph(ctx)
		if err != nil {
			return err
		}
		defer store.Close(context.Background())

		embedder, closeCache, err := openEmbedder(ctx)
		if err != nil {
			return err
		}
		defer closeCache()

		generator, err := openGenerator(ctx)
		if err != nil {
			return err
		}

		server := mcp.NewServer(rag.NewService(store, embedder, generator, cfg.LLM.TopK), store, Version)
		g.Go(func() error {
			// a closed client ends the process
			defer stop()
			return server.Run(ctx)
		})
	}

	return g.Wait()
}
