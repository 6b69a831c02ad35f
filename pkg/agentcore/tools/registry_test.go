package tools

import (
	"encoding/json"
	"testing"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry([]Tool{
		{
			Name:      "write_file",
			Schema:    json.RawMessage(`{"type":"object","required":["path","content"],"properties":{"path":{"type":"string"},"content":{"type":"string"}}}`),
			Sensitive: true,
			Invoke:    func(ctx ExecContext, args map[string]any) Result { return OK("wrote") },
		},
		{
			Name:   "read_file",
			Schema: json.RawMessage(`{"type":"object","required":["path"],"properties":{"path":{"type":"string"}}}`),
			Invoke: func(ctx ExecContext, args map[string]any) Result { return OK("contents") },
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestRegistry_LookupAndSensitivity(t *testing.T) {
	t.Parallel()
	r := testRegistry(t)

	if !r.IsSensitive("write_file") {
		t.Error("expected write_file to be sensitive")
	}
	if r.IsSensitive("read_file") {
		t.Error("expected read_file to be non-sensitive")
	}
	if !r.IsSensitive("no_such_tool") {
		t.Error("expected unknown tool to fail closed as sensitive")
	}
}

func TestRegistry_OverrideSensitivity(t *testing.T) {
	t.Parallel()
	r := testRegistry(t)
	r.OverrideSensitivity([]string{"write_file"}, []string{"read_file"})

	if r.IsSensitive("write_file") {
		t.Error("expected always_approve to override write_file's own Sensitive flag")
	}
	if !r.IsSensitive("read_file") {
		t.Error("expected require_approval to override read_file's own Sensitive flag")
	}
	if !r.IsSensitive("no_such_tool") {
		t.Error("expected an unregistered tool with no override to still fail closed")
	}
}

func TestRegistry_RejectsDuplicateNames(t *testing.T) {
	t.Parallel()
	_, err := NewRegistry([]Tool{
		{Name: "dup", Invoke: func(ExecContext, map[string]any) Result { return OK("") }},
		{Name: "dup", Invoke: func(ExecContext, map[string]any) Result { return OK("") }},
	})
	if err == nil {
		t.Fatal("expected duplicate tool name to be rejected")
	}
}

func TestTool_ValidateRejectsMissingRequiredArg(t *testing.T) {
	t.Parallel()
	r := testRegistry(t)
	tool, ok := r.Lookup("write_file")
	if !ok {
		t.Fatal("expected write_file registered")
	}
	if err := tool.Validate(map[string]any{"path": "a.txt"}); err == nil {
		t.Fatal("expected validation error for missing 'content'")
	}
	if err := tool.Validate(map[string]any{"path": "a.txt", "content": "hi"}); err != nil {
		t.Fatalf("expected valid args to pass, got %v", err)
	}
}

func TestCheckDenyList(t *testing.T) {
	t.Parallel()
	cases := []struct {
		cmd     string
		blocked bool
	}{
		{"ls -la", false},
		{"rm -rf /", true},
		{"sudo rm -rf /tmp/x", true},
		{"dd if=/dev/zero of=/dev/sda", true},
		{"mkfs.ext4 /dev/sda1", true},
		{"shutdown -h now", true},
		{"echo hello", false},
	}
	for _, c := range cases {
		err := CheckDenyList(c.cmd)
		if c.blocked && err == nil {
			t.Errorf("expected %q to be blocked", c.cmd)
		}
		if !c.blocked && err != nil {
			t.Errorf("expected %q to pass, got %v", c.cmd, err)
		}
	}
}

func TestResolveUnderRoot_RejectsEscape(t *testing.T) {
	t.Parallel()
	if _, err := ResolveUnderRoot("/tmp/project", "../etc/passwd"); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
	got, err := ResolveUnderRoot("/tmp/project", "src/main.go")
	if err != nil {
		t.Fatalf("expected valid path to resolve, got %v", err)
	}
	if got != "/tmp/project/src/main.go" {
		t.Errorf("unexpected resolved path %q", got)
	}
}
