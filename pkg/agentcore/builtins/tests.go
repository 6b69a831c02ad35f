package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/devagent/agentcore/pkg/agentcore/tools"
)

const testRunTimeout = 5 * time.Minute

func RunTestsTool() tools.Tool {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command":   map[string]any{"type": "string", "description": "Explicit test command (overrides framework auto-detect)"},
			"path":      map[string]any{"type": "string", "description": "Specific file or directory to test, relative to the project root"},
			"framework": map[string]any{"type": "string", "enum": []string{"go", "jest", "pytest", "cargo"}, "description": "Force a specific framework"},
		},
	})
	return tools.Tool{
		Name:        "run_tests",
		Description: "Run the project's test suite, auto-detecting the framework from the project root unless a command or framework is given.",
		Schema:      schema,
		Sensitive:   false,
		Invoke: func(ctx tools.ExecContext, args map[string]any) tools.Result {
			command, _ := args["command"].(string)
			path, _ := args["path"].(string)
			framework, _ := args["framework"].(string)

			if command == "" {
				if framework == "" {
					framework = detectTestFramework(ctx.ProjectRoot)
				}
				command = buildTestCommand(framework, path)
				if command == "" {
					return tools.Err("could not detect a test framework; pass an explicit command")
				}
			}
			if err := tools.CheckDenyList(command); err != nil {
				return tools.Err(err.Error())
			}

			execCtx, cancel := context.WithTimeout(ctx.Context, testRunTimeout)
			defer cancel()

			start := time.Now()
			cmd := exec.CommandContext(execCtx, "bash", "-c", command)
			cmd.Dir = ctx.ProjectRoot
			out, err := cmd.CombinedOutput()
			duration := time.Since(start)

			exitCode := 0
			status := tools.StatusOK
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
				status = tools.StatusError
			} else if err != nil {
				return tools.Errf("running tests: %v", err)
			}

			return tools.Result{
				Content: fmt.Sprintf("command: %s\nexit code: %d\nduration: %s\n\n%s", command, exitCode, duration, out),
				Status:  status,
			}
		},
	}
}

func detectTestFramework(root string) string {
	checks := map[string][]string{
		"go":     {"go.mod"},
		"jest":   {"jest.config.js", "jest.config.ts", "jest.config.cjs"},
		"pytest": {"pytest.ini", "pyproject.toml", "setup.cfg"},
		"cargo":  {"Cargo.toml"},
	}
	for framework, files := range checks {
		for _, name := range files {
			if _, err := os.Stat(filepath.Join(root, name)); err == nil {
				return framework
			}
		}
	}
	if content, err := os.ReadFile(filepath.Join(root, "package.json")); err == nil {
		if strings.Contains(string(content), "jest") || strings.Contains(string(content), "vitest") {
			return "jest"
		}
	}
	return ""
}

func buildTestCommand(framework, path string) string {
	switch framework {
	case "go":
		if path != "" {
			return "go test " + path
		}
		return "go test ./..."
	case "jest":
		if path != "" {
			return "npx jest " + path
		}
		return "npx jest"
	case "pytest":
		if path != "" {
			return "python -m pytest " + path
		}
		return "python -m pytest"
	case "cargo":
		return "cargo test"
	default:
		return ""
	}
}
