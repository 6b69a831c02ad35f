package graph

import (
	"testing"

	"github.com/devagent/agentcore/pkg/agentcore/state"
	"github.com/devagent/agentcore/pkg/agentcore/tools"
)

func mustRegistry(t *testing.T, defs []tools.Tool) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistry(defs)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func sensitiveTool(name string) tools.Tool {
	return tools.Tool{
		Name:      name,
		Schema:    []byte(`{"type":"object"}`),
		Sensitive: true,
		Invoke:    func(tools.ExecContext, map[string]any) tools.Result { return tools.OK("") },
	}
}

func toolCallMessage(name string, args map[string]any) state.Message {
	return state.NewAssistantMessage("", []state.ToolCall{{ID: "id", Name: name, Args: args}}, "")
}

func TestDetectDestructiveStreak_FiresOnDistinctSensitiveCalls(t *testing.T) {
	t.Parallel()
	registry := mustRegistry(t, []tools.Tool{sensitiveTool("delete_file"), sensitiveTool("run_command")})

	var messages []state.Message
	names := []string{"delete_file", "run_command", "delete_file", "run_command", "delete_file"}
	for i, name := range names {
		messages = append(messages, toolCallMessage(name, map[string]any{"n": i}))
	}

	d := detectDestructiveStreak(messages, registry, 0)
	if !d.Fired {
		t.Fatal("expected the destructive streak detector to fire on 5 distinct sensitive calls")
	}
}

func TestDetectDestructiveStreak_DoesNotFireBelowThreshold(t *testing.T) {
	t.Parallel()
	registry := mustRegistry(t, []tools.Tool{sensitiveTool("delete_file")})

	var messages []state.Message
	for i := 0; i < defaultDestructiveStreakThreshold-1; i++ {
		messages = append(messages, toolCallMessage("delete_file", map[string]any{"n": i}))
	}

	if d := detectDestructiveStreak(messages, registry, 0); d.Fired {
		t.Fatalf("did not expect the streak to fire below threshold, got: %s", d.Reason)
	}
}

func TestDetectDestructiveStreak_BreaksOnNonSensitiveCall(t *testing.T) {
	t.Parallel()
	registry := mustRegistry(t, []tools.Tool{
		sensitiveTool("delete_file"),
		{Name: "read_file", Schema: []byte(`{"type":"object"}`), Invoke: func(tools.ExecContext, map[string]any) tools.Result { return tools.OK("") }},
	})

	messages := []state.Message{
		toolCallMessage("delete_file", nil),
		toolCallMessage("delete_file", nil),
		toolCallMessage("read_file", nil),
		toolCallMessage("delete_file", nil),
		toolCallMessage("delete_file", nil),
		toolCallMessage("delete_file", nil),
	}

	if d := detectDestructiveStreak(messages, registry, 0); d.Fired {
		t.Fatalf("expected the intervening read_file call to break the streak, got: %s", d.Reason)
	}
}

func TestDetectDestructiveStreak_NilRegistryNeverFires(t *testing.T) {
	t.Parallel()
	var messages []state.Message
	for i := 0; i < defaultDestructiveStreakThreshold+2; i++ {
		messages = append(messages, toolCallMessage("delete_file", nil))
	}
	if d := detectDestructiveStreak(messages, nil, 0); d.Fired {
		t.Fatal("expected a nil registry to disable the detector rather than panic")
	}
}

func TestDetectLoop_FallsThroughToDestructiveStreak(t *testing.T) {
	t.Parallel()
	registry := mustRegistry(t, []tools.Tool{sensitiveTool("delete_file"), sensitiveTool("run_command")})

	var messages []state.Message
	names := []string{"delete_file", "run_command", "delete_file", "run_command", "delete_file"}
	for i, name := range names {
		messages = append(messages, toolCallMessage(name, map[string]any{"path": i}))
	}

	d := detectLoop(messages, registry, 0)
	if !d.Fired {
		t.Fatal("expected detectLoop to fire via the destructive streak detector")
	}
}
