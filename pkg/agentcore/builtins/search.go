package builtins

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/devagent/agentcore/pkg/agentcore/tools"
)

// maxSearchOutput caps how much of a search result is returned in one call.
const maxSearchOutput = 6000

func SearchCodeTool() tools.Tool {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern":   map[string]any{"type": "string", "description": "Search pattern (regex)"},
			"path":      map[string]any{"type": "string", "description": "Directory or file to search, relative to the project root (default: root)"},
			"file_type": map[string]any{"type": "string", "description": "Restrict to a file type, e.g. 'go', 'ts', 'py'"},
			"max_count": map[string]any{"type": "integer", "description": "Maximum number of matches (default 50)"},
		},
		"required": []string{"pattern"},
	})
	return tools.Tool{
		Name:        "search_code",
		Description: "Search file contents under the project root using ripgrep, falling back to grep when rg is unavailable. Returns file, line number, and matching text.",
		Schema:      schema,
		Sensitive:   false,
		Invoke: func(ctx tools.ExecContext, args map[string]any) tools.Result {
			pattern, _ := args["pattern"].(string)
			if pattern == "" {
				return tools.Err("pattern is required")
			}
			rel, _ := args["path"].(string)
			if rel == "" {
				rel = "."
			}
			searchPath, err := tools.ResolveUnderRoot(ctx.ProjectRoot, rel)
			if err != nil {
				return tools.Errf("resolve path: %v", err)
			}
			maxCount := intArg(args, "max_count", 50)

			rgArgs := []string{"-n", "--no-heading", "--color=never", "-m", fmt.Sprintf("%d", maxCount)}
			if ft, _ := args["file_type"].(string); ft != "" {
				rgArgs = append(rgArgs, "-t", ft)
			}
			rgArgs = append(rgArgs, pattern, searchPath)

			out, err := exec.CommandContext(ctx.Context, "rg", rgArgs...).CombinedOutput()
			result := strings.TrimSpace(string(out))
			if err != nil && result == "" {
				grepArgs := []string{"-rn", "--include=*", pattern, searchPath}
				out, err = exec.CommandContext(ctx.Context, "grep", grepArgs...).CombinedOutput()
				result = strings.TrimSpace(string(out))
				if err != nil && result == "" {
					return tools.OK("no matches found")
				}
			}
			if result == "" {
				return tools.OK("no matches found")
			}
			if len(result) > maxSearchOutput {
				result = result[:maxSearchOutput] + "\n... [truncated, narrow the search]"
			}
			return tools.OK(result)
		},
	}
}
