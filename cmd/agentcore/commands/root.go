// Package commands implements the agentcore CLI's cobra commands.
package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the root command with every subcommand registered
// (§6 "CLI surface").
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "agentcore",
		Short:   "Run the autonomous coding agent's orchestration engine",
		Version: version,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to a YAML config file")
	root.PersistentFlags().Bool("demo", false, "bypass human approval for sensitive tool calls")
	root.PersistentFlags().String("thread-id", "", "resume or create the named thread")
	root.PersistentFlags().Int("recursion-limit-base", 0, "override the recursion limit base (default 20)")

	root.AddCommand(newRunCmd(), newResumeCmd(), newThreadsCmd())
	return root
}

// ExitCodeFor maps a returned error to the §6 exit-code contract:
// 0 success, 1 unrecoverable error, 2 user cancellation.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errCancelled) {
		return 2
	}
	return 1
}
