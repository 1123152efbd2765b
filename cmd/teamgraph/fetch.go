package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/rohankatakam/teamgraph/internal/config"
	"github.com/rohankatakam/teamgraph/internal/format"
	"github.com/rohankatakam/teamgraph/internal/github"
	"github.com/rohankatakam/teamgraph/internal/models"
	"github.com/rohankatakam/teamgraph/internal/slack"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Pull raw records from GitHub or Slack",
	Long: `Fetch raw records from a source. Records can be formatted into a JSON
document (--out) for 'teamgraph ingest --input', staged (--stage) for
'teamgraph ingest --from-staging', or both.`,
}

var fetchGitHubCmd = &cobra.Command{
	Use:   "github",
	Short: "Fetch a repository's pull requests, issues and contributors",
	Example: `  teamgraph fetch github --repo acme/app --out app.json
  teamgraph fetch github --repo acme/app --stage`,
	RunE: runFetchGitHub,
}

var fetchSlackCmd = &cobra.Command{
	Use:   "slack",
	Short: "Fetch channel history and thread replies",
	Example: `  teamgraph fetch slack --channel C0123 --channel C0456 --out eng.json
  teamgraph fetch slack --since 720h --stage`,
	RunE: runFetchSlack,
}

func init() {
	for _, c := range []*cobra.Command{fetchGitHubCmd, fetchSlackCmd} {
		c.Flags().String("out", "", "write the formatted document to this JSON file")
		c.Flags().Bool("stage", false, "upsert raw records into the staging store")
	}

	fetchGitHubCmd.Flags().String("repo", "", "repository as owner/name")
	fetchGitHubCmd.MarkFlagRequired("repo")

	fetchSlackCmd.Flags().StringSlice("channel", nil, "channel id (repeatable, default: slack.channels from config)")
	fetchSlackCmd.Flags().Duration("since", 0, "only fetch messages newer than this age")
	fetchSlackCmd.Flags().Bool("skip-replies", false, "do not fetch thread replies")

	fetchCmd.AddCommand(fetchGitHubCmd)
	fetchCmd.AddCommand(fetchSlackCmd)
}

func runFetchGitHub(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := validate(config.ValidationContextFetchGitHub); err != nil {
		return err
	}

	repoArg, _ := cmd.Flags().GetString("repo")
	owner, name, err := github.ParseRepo(repoArg)
	if err != nil {
		return err
	}

	var opts []github.Option
	if cfg.GitHub.BaseURL != "" {
		opts = append(opts, github.WithBaseURL(cfg.GitHub.BaseURL))
	}
	if cfg.GitHub.RateLimit > 0 {
		opts = append(opts, github.WithRateLimit(rate.Limit(cfg.GitHub.RateLimit)))
	}

	stage, _ := cmd.Flags().GetBool("stage")
	if stage {
		staging, err := openStaging()
		if err != nil {
			return err
		}
		defer staging.Close()
		opts = append(opts, github.WithStager(staging))
	}

	batch, stats, err := github.NewFetcher(cfg.GitHub.Token, opts...).FetchAll(ctx, owner, name)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"repo":         repoArg,
		"prs":          stats.PRs,
		"issues":       stats.Issues,
		"contributors": stats.Contributors,
		"staged":       stats.Staged,
	}).Info("GitHub fetch complete")

	out, _ := cmd.Flags().GetString("out")
	return writeFetched(cmd, batch, out, stage)
}

func runFetchSlack(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := validate(config.ValidationContextFetchSlack); err != nil {
		return err
	}

	channels, _ := cmd.Flags().GetStringSlice("channel")
	if len(channels) == 0 {
		channels = cfg.Slack.Channels
	}
	if len(channels) == 0 {
		return fmt.Errorf("no channels given: pass --channel or set slack.channels")
	}

	fetchOpts := slack.FetchOptions{}
	fetchOpts.SkipReplies, _ = cmd.Flags().GetBool("skip-replies")
	if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
		fetchOpts.Oldest = time.Now().Add(-since)
	}

	var opts []slack.Option
	stage, _ := cmd.Flags().GetBool("stage")
	if stage {
		staging, err := openStaging()
		if err != nil {
			return err
		}
		defer staging.Close()
		opts = append(opts, slack.WithStager(staging))
	}

	batch, stats, err := slack.NewFetcher(cfg.Slack.Token, opts...).FetchChannels(ctx, channels, fetchOpts)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"channels": stats.Channels,
		"messages": stats.Messages,
		"replies":  stats.Replies,
		"users":    stats.Users,
		"staged":   stats.Staged,
	}).Info("Slack fetch complete")

	out, _ := cmd.Flags().GetString("out")
	return writeFetched(cmd, batch, out, stage)
}

// writeFetched formats batch into a document at path. With neither a path
// nor staging the document goes to stdout.
func writeFetched(cmd *cobra.Command, batch format.RawBatch, path string, staged bool) error {
	if path == "" && staged {
		return nil
	}

	doc, stats := format.FormatAll(batch)
	for kind, n := range stats.Dropped {
		if n > 0 {
			logger.WithFields(logrus.Fields{"kind": kind, "dropped": n}).Warn("Malformed records dropped")
		}
	}

	if path == "" {
		return encodeDocument(cmd.OutOrStdout(), doc)
	}
	return saveDocument(path, doc)
}

func saveDocument(path string, doc *models.Document) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := encodeDocument(f, doc); err != nil {
		return err
	}
	logger.WithField("path", path).Info("Document written")
	return nil
}

func encodeDocument(w io.Writer, doc *models.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return nil
}
