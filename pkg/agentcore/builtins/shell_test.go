package builtins

import (
	"strings"
	"testing"

	"github.com/devagent/agentcore/pkg/agentcore/tools"
)

func TestRunCommandTool_ReturnsExitCodeAndOutput(t *testing.T) {
	t.Parallel()
	res := RunCommandTool().Invoke(execCtx(t), map[string]any{"command": "echo hi"})
	if res.Status != tools.StatusOK {
		t.Fatalf("expected run_command to succeed, got %s", res.Content)
	}
	if !strings.Contains(res.Content, "exit code: 0") || !strings.Contains(res.Content, "hi") {
		t.Errorf("unexpected output: %q", res.Content)
	}
}

func TestRunCommandTool_NonZeroExit(t *testing.T) {
	t.Parallel()
	res := RunCommandTool().Invoke(execCtx(t), map[string]any{"command": "exit 3"})
	if res.Status != tools.StatusError {
		t.Fatal("expected a non-zero exit to report Status error")
	}
	if !strings.Contains(res.Content, "exit code: 3") {
		t.Errorf("expected exit code 3 reported, got %q", res.Content)
	}
}

func TestRunCommandTool_RejectsDenyListedCommand(t *testing.T) {
	t.Parallel()
	res := RunCommandTool().Invoke(execCtx(t), map[string]any{"command": "rm -rf /"})
	if res.Status != tools.StatusError {
		t.Fatal("expected the deny-list to reject rm -rf")
	}
}

func TestRunCommandTool_RequiresCommand(t *testing.T) {
	t.Parallel()
	res := RunCommandTool().Invoke(execCtx(t), map[string]any{})
	if res.Status != tools.StatusError {
		t.Fatal("expected an empty command to be rejected")
	}
}
