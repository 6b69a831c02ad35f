// Package builtins implements the capability registry's concrete tools
// (§6 "Built-in tools"): file I/O, code search, shell execution, the
// background-process manager, and the test runner. Every tool is built
// against pkg/agentcore/tools.Tool and resolves paths through
// tools.ResolveUnderRoot so a traversal attempt never escapes the
// project root.
package builtins

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/devagent/agentcore/pkg/agentcore/tools"
)

// maxReadBytes caps how much of a file read_file returns in one call,
// mirroring the teacher's 100KB per-read cap.
const maxReadBytes = 100_000

func ReadFileTool() tools.Tool {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":   map[string]any{"type": "string", "description": "File path, relative to the project root"},
			"offset": map[string]any{"type": "integer", "description": "1-based line number to start from (default 1)"},
			"limit":  map[string]any{"type": "integer", "description": "Maximum number of lines to return (default: all)"},
		},
		"required": []string{"path"},
	})
	return tools.Tool{
		Name:        "read_file",
		Description: "Read a file under the project root. Returns up to 100KB of text, optionally windowed by line offset/limit.",
		Schema:      schema,
		Sensitive:   false,
		Invoke: func(ctx tools.ExecContext, args map[string]any) tools.Result {
			rel, _ := args["path"].(string)
			if rel == "" {
				return tools.Err("path is required")
			}
			full, err := tools.ResolveUnderRoot(ctx.ProjectRoot, rel)
			if err != nil {
				return tools.Errf("resolve path: %v", err)
			}
			content, err := os.ReadFile(full)
			if err != nil {
				return tools.Errf("reading file: %v", err)
			}
			text := string(content)

			offset := intArg(args, "offset", 0)
			limit := intArg(args, "limit", 0)
			if offset > 1 || limit > 0 {
				lines := strings.Split(text, "\n")
				start := 0
				if offset > 1 {
					start = offset - 1
				}
				if start >= len(lines) {
					return tools.OK("(offset beyond end of file)")
				}
				lines = lines[start:]
				if limit > 0 && limit < len(lines) {
					lines = lines[:limit]
				}
				text = strings.Join(lines, "\n")
			}

			if len(text) > maxReadBytes {
				text = text[:maxReadBytes] + "\n... [truncated at 100KB]"
			}
			return tools.OK(text)
		},
	}
}

func WriteFileTool() tools.Tool {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "File path, relative to the project root"},
			"content": map[string]any{"type": "string", "description": "Content to write"},
			"append":  map[string]any{"type": "boolean", "description": "Append instead of overwrite (default false)"},
		},
		"required": []string{"path", "content"},
	})
	return tools.Tool{
		Name:        "write_file",
		Description: "Write (or append to) a file under the project root, creating parent directories as needed.",
		Schema:      schema,
		Sensitive:   true,
		Invoke: func(ctx tools.ExecContext, args map[string]any) tools.Result {
			rel, _ := args["path"].(string)
			content, _ := args["content"].(string)
			appendMode, _ := args["append"].(bool)
			if rel == "" {
				return tools.Err("path is required")
			}
			full, err := tools.ResolveUnderRoot(ctx.ProjectRoot, rel)
			if err != nil {
				return tools.Errf("resolve path: %v", err)
			}
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return tools.Errf("creating directory: %v", err)
			}
			flags := os.O_CREATE | os.O_WRONLY
			if appendMode {
				flags |= os.O_APPEND
			} else {
				flags |= os.O_TRUNC
			}
			f, err := os.OpenFile(full, flags, 0o644)
			if err != nil {
				return tools.Errf("opening file: %v", err)
			}
			defer f.Close()
			if _, err := f.WriteString(content); err != nil {
				return tools.Errf("writing file: %v", err)
			}
			return tools.OK(fmt.Sprintf("wrote %d bytes to %s", len(content), rel))
		},
	}
}

func ListDirectoryTool() tools.Tool {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "Directory path, relative to the project root (default: root itself)"},
		},
	})
	return tools.Tool{
		Name:        "list_directory",
		Description: "List the immediate contents of a directory under the project root.",
		Schema:      schema,
		Sensitive:   false,
		Invoke: func(ctx tools.ExecContext, args map[string]any) tools.Result {
			rel, _ := args["path"].(string)
			if rel == "" {
				rel = "."
			}
			full, err := tools.ResolveUnderRoot(ctx.ProjectRoot, rel)
			if err != nil {
				return tools.Errf("resolve path: %v", err)
			}
			entries, err := os.ReadDir(full)
			if err != nil {
				return tools.Errf("reading directory: %v", err)
			}
			var b strings.Builder
			for _, e := range entries {
				suffix := ""
				if e.IsDir() {
					suffix = "/"
				}
				fmt.Fprintf(&b, "%s%s\n", e.Name(), suffix)
			}
			return tools.OK(b.String())
		},
	}
}

func intArg(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	return def
}
