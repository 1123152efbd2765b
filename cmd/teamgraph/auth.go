package main

import (
	"fmt"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/teamgraph/internal/config"
)

// GitHubTokenURL preselects the read-only scopes the fetcher needs
const GitHubTokenURL = "https://github.com/settings/tokens/new?description=teamgraph&scopes=repo,read:org"

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API credentials",
	Long: `Store and inspect the tokens teamgraph uses. Secrets go to the OS keychain
when one is available, else to ~/.teamgraph/credentials.yaml (mode 0600).
Environment variables always take precedence.`,
}

var authSetCmd = &cobra.Command{
	Use:       "set <github|slack|openai|gemini>",
	Short:     "Store a credential",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"github", "slack", "openai", "gemini"},
	RunE:      runAuthSet,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where each credential is read from",
	RunE:  runAuthStatus,
}

var authGitHubCmd = &cobra.Command{
	Use:   "github",
	Short: "Create and store a GitHub token",
	RunE:  runAuthGitHub,
}

func init() {
	authGitHubCmd.Flags().Bool("open", false, "open the token creation page in a browser")

	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authGitHubCmd)
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	item, ok := config.ParseItem(args[0])
	if !ok {
		return fmt.Errorf("unknown credential %q (want github, slack, openai or gemini)", args[0])
	}
	return promptAndSave(cmd, item)
}

func runAuthGitHub(cmd *cobra.Command, args []string) error {
	open, _ := cmd.Flags().GetBool("open")
	if open {
		if err := browser.OpenURL(GitHubTokenURL); err != nil {
			logger.WithError(err).Warn("Could not open browser")
			fmt.Fprintf(cmd.OutOrStdout(), "Visit: %s\n", GitHubTokenURL)
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Create a token at: %s\n", GitHubTokenURL)
	}
	return promptAndSave(cmd, config.ItemGitHubToken)
}

func promptAndSave(cmd *cobra.Command, item config.Item) error {
	secret, err := config.ReadSecret(fmt.Sprintf("Enter %s: ", item), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	where, err := config.NewCredentialManager().Save(item, secret)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s) to %s\n", item, config.MaskSecret(secret), where)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	creds := config.NewCredentialManager()
	for _, item := range config.Items {
		fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s (env %s)\n", item, creds.Source(item), item.EnvVar())
	}
	return nil
}
