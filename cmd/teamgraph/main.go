package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/teamgraph/internal/config"
	teamerrors "github.com/rohankatakam/teamgraph/internal/errors"
	"github.com/rohankatakam/teamgraph/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile  string
	verbose  bool
	jsonLogs bool
	logger   *logrus.Logger
	cfg      *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var typed *teamerrors.Error
		if verbose && errors.As(err, &typed) {
			fmt.Fprint(os.Stderr, typed.DetailedString())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "teamgraph",
	Short: "Team knowledge graph from GitHub and Slack",
	Long: `teamgraph links pull requests, issues and Slack conversations into one
Neo4j graph, resolves people across both sources, and answers questions by
routing them to the right vector index.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewCLILogger(os.Stderr, verbose, jsonLogs)

		logCfg := logging.DefaultConfig(verbose)
		logCfg.JSONFormat = jsonLogs
		if err := logging.Initialize(logCfg); err != nil {
			logger.WithError(err).Debug("Structured log file unavailable")
		}
		logging.AttachFile(logger)

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .teamgraph/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "log as JSON")

	rootCmd.SetVersionTemplate(`teamgraph {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(serveCmd)
}
