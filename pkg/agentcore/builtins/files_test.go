package builtins

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/devagent/agentcore/pkg/agentcore/tools"
)

func execCtx(t *testing.T) tools.ExecContext {
	t.Helper()
	return tools.ExecContext{Context: context.Background(), ProjectRoot: t.TempDir()}
}

func TestWriteThenReadFileTool(t *testing.T) {
	t.Parallel()
	ctx := execCtx(t)

	write := WriteFileTool()
	res := write.Invoke(ctx, map[string]any{"path": "hello.txt", "content": "line one\nline two\nline three"})
	if res.Status != tools.StatusOK {
		t.Fatalf("write_file failed: %s", res.Content)
	}

	read := ReadFileTool()
	res = read.Invoke(ctx, map[string]any{"path": "hello.txt"})
	if res.Status != tools.StatusOK {
		t.Fatalf("read_file failed: %s", res.Content)
	}
	if res.Content != "line one\nline two\nline three" {
		t.Errorf("unexpected content: %q", res.Content)
	}
}

func TestReadFileTool_OffsetAndLimit(t *testing.T) {
	t.Parallel()
	ctx := execCtx(t)

	WriteFileTool().Invoke(ctx, map[string]any{"path": "lines.txt", "content": "a\nb\nc\nd\ne"})
	res := ReadFileTool().Invoke(ctx, map[string]any{"path": "lines.txt", "offset": 2, "limit": 2})
	if res.Status != tools.StatusOK {
		t.Fatalf("read_file failed: %s", res.Content)
	}
	if res.Content != "b\nc" {
		t.Errorf("expected windowed content 'b\\nc', got %q", res.Content)
	}
}

func TestWriteFileTool_AppendMode(t *testing.T) {
	t.Parallel()
	ctx := execCtx(t)

	WriteFileTool().Invoke(ctx, map[string]any{"path": "log.txt", "content": "first\n"})
	WriteFileTool().Invoke(ctx, map[string]any{"path": "log.txt", "content": "second\n", "append": true})

	res := ReadFileTool().Invoke(ctx, map[string]any{"path": "log.txt"})
	if res.Content != "first\nsecond\n" {
		t.Errorf("expected appended content, got %q", res.Content)
	}
}

func TestWriteFileTool_RejectsPathTraversal(t *testing.T) {
	t.Parallel()
	ctx := execCtx(t)
	res := WriteFileTool().Invoke(ctx, map[string]any{"path": "../../etc/passwd", "content": "x"})
	if res.Status != tools.StatusError {
		t.Fatal("expected write_file to reject a path escaping the project root")
	}
}

func TestListDirectoryTool(t *testing.T) {
	t.Parallel()
	ctx := execCtx(t)
	WriteFileTool().Invoke(ctx, map[string]any{"path": "a.txt", "content": "x"})
	WriteFileTool().Invoke(ctx, map[string]any{"path": filepath.Join("sub", "b.txt"), "content": "x"})

	res := ListDirectoryTool().Invoke(ctx, map[string]any{})
	if res.Status != tools.StatusOK {
		t.Fatalf("list_directory failed: %s", res.Content)
	}
	if !containsLine(res.Content, "a.txt") || !containsLine(res.Content, "sub/") {
		t.Errorf("expected listing to include a.txt and sub/, got %q", res.Content)
	}
}

func containsLine(haystack, line string) bool {
	for _, l := range splitLines(haystack) {
		if l == line {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
