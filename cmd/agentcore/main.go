// Command agentcore is the CLI host for the orchestration engine (§6
// "CLI surface"): it owns process lifetime, config/.env loading, and the
// exit-code contract (0 success, 1 unrecoverable error, 2 cancellation).
package main

import (
	"fmt"
	"os"

	"github.com/devagent/agentcore/cmd/agentcore/commands"
)

var version = "dev"

func main() {
	root := commands.NewRootCmd(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(commands.ExitCodeFor(err))
	}
}
