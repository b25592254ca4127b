package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mikey/llm-inbox-triage/internal/di"
)

// Version is set via ldflags at build time.
var Version = "dev"

// errRunFailed marks a run that finished but had failing accounts or messages
var errRunFailed = errors.New("run finished with failures")

var rootCmd = &cobra.Command{
	Use:           "inbox-triage",
	Short:         "inbox-triage - LLM assisted triage of IMAP mailboxes into notes",
	Long:          "Scores new mail of every configured account for importance and spam, applies blacklist and whitelist rules and writes one Markdown note per message.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var cliFlags = di.RegisterFlags(rootCmd.PersistentFlags())

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "inbox-triage version %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, errRunFailed) {
		return 2
	}
	return 1
}

// invoke builds the dependency container and runs fn with its dependencies
func invoke(fn any) error {
	container, err := di.BuildContainer(cliFlags)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}
	return container.Invoke(fn)
}
