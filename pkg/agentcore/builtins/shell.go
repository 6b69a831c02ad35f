package builtins

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/devagent/agentcore/pkg/agentcore/sandbox"
	"github.com/devagent/agentcore/pkg/agentcore/tools"
)

// defaultCommandTimeout is the per-invocation cap for run_command (§5
// "Tool execution: per-tool, e.g. 60s for tests").
const defaultCommandTimeout = 60 * time.Second

// sharedRunner lazily builds the one sandbox.Runner every shell-spawning
// builtin shares, so namespace availability is probed once. Runner falls
// back to IsolationNone itself when Linux namespaces aren't available.
var sharedRunner *sandbox.Runner

func runner() (*sandbox.Runner, error) {
	if sharedRunner != nil {
		return sharedRunner, nil
	}
	cfg := sandbox.DefaultConfig()
	r, err := sandbox.NewRunner(cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	sharedRunner = r
	return r, nil
}

// writeCommandScript materializes command as a throwaway shell script so
// it can be handed to sandbox.Runner, which executes script files rather
// than inline strings.
func writeCommandScript(command string) (string, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("agentcore-cmd-%s.sh", uuid.New().String()))
	content := "#!/bin/sh\nset -e\n" + command + "\n"
	if err := os.WriteFile(path, []byte(content), 0o700); err != nil {
		return "", err
	}
	return path, nil
}

// RunCommandTool runs a one-shot shell command to completion under
// sandbox.Runner, gated by the process-spawn deny-list (§6). Long-running
// processes belong to manage_process instead.
func RunCommandTool() tools.Tool {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string", "description": "Shell command to run to completion"},
			"timeout_seconds": map[string]any{
				"type":        "integer",
				"description": "Override the default 60s timeout",
			},
		},
		"required": []string{"command"},
	})
	return tools.Tool{
		Name:        "run_command",
		Description: "Run a shell command to completion under the project root and return its combined stdout/stderr and exit code.",
		Schema:      schema,
		Sensitive:   true,
		Invoke: func(ctx tools.ExecContext, args map[string]any) tools.Result {
			command, _ := args["command"].(string)
			if command == "" {
				return tools.Err("command is required")
			}
			if err := tools.CheckDenyList(command); err != nil {
				return tools.Err(err.Error())
			}

			timeout := defaultCommandTimeout
			if secs := intArg(args, "timeout_seconds", 0); secs > 0 {
				timeout = time.Duration(secs) * time.Second
			}

			r, err := runner()
			if err != nil {
				return tools.Errf("sandbox unavailable: %v", err)
			}

			scriptPath, err := writeCommandScript(command)
			if err != nil {
				return tools.Errf("staging command: %v", err)
			}
			defer os.Remove(scriptPath)

			res, err := r.Run(ctx.Context, &sandbox.ExecRequest{
				Runtime: sandbox.RuntimeShell,
				Script:  scriptPath,
				WorkDir: ctx.ProjectRoot,
				Timeout: timeout,
			})
			if res == nil {
				return tools.Errf("running command: %v", err)
			}
			if res.Killed {
				return tools.Errf("command %s after %s: %s", res.KillReason, timeout, res.Stderr)
			}

			status := tools.StatusOK
			if res.ExitCode != 0 {
				status = tools.StatusError
			}
			out := res.Stdout + res.Stderr
			return tools.Result{Content: fmt.Sprintf("exit code: %d\n%s", res.ExitCode, out), Status: status}
		},
	}
}
