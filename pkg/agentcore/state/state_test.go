package state

import "testing"

func TestCreateState_Defaults(t *testing.T) {
	t.Parallel()
	s := CreateState(nil)
	if s.TaskStatus != TaskPlanning {
		t.Errorf("expected default taskStatus planning, got %q", s.TaskStatus)
	}
	if s.MaxIterations != DefaultMaxIterations {
		t.Errorf("expected default maxIterations %d, got %d", DefaultMaxIterations, s.MaxIterations)
	}
	if s.CurrentTodoIndex != 0 {
		t.Errorf("expected default cursor 0, got %d", s.CurrentTodoIndex)
	}
	if s.ProjectRoot == "" {
		t.Error("expected projectRoot to default to the working directory")
	}
}

func TestCreateState_Overrides(t *testing.T) {
	t.Parallel()
	s := CreateState(&AgentState{DemoMode: true, MaxIterations: 7, ProjectRoot: "/tmp/proj"})
	if !s.DemoMode {
		t.Error("expected demoMode override applied")
	}
	if s.MaxIterations != 7 {
		t.Errorf("expected maxIterations override 7, got %d", s.MaxIterations)
	}
	if s.ProjectRoot != "/tmp/proj" {
		t.Errorf("expected projectRoot override, got %q", s.ProjectRoot)
	}
}

func TestApplyDelta_TodoAdvanceCompletesTask(t *testing.T) {
	t.Parallel()
	s := CreateState(&AgentState{})
	s.Todos = []string{"write file"}
	s.TaskStatus = TaskExecuting

	next := ApplyDelta(s, StateDelta{CurrentTodoIndex: IntPtr(1)})
	if next.TaskStatus != TaskCompleted {
		t.Errorf("expected taskStatus completed once cursor reaches todos length, got %q", next.TaskStatus)
	}
}

func TestApplyDelta_ClampsCursorToTodosLength(t *testing.T) {
	t.Parallel()
	s := CreateState(&AgentState{})
	s.Todos = []string{"a", "b"}

	next := ApplyDelta(s, StateDelta{CurrentTodoIndex: IntPtr(99)})
	if next.CurrentTodoIndex != 2 {
		t.Errorf("expected cursor clamped to todos length 2, got %d", next.CurrentTodoIndex)
	}
}

func TestApplyDelta_LeavesUntouchedFieldsAlone(t *testing.T) {
	t.Parallel()
	s := CreateState(&AgentState{})
	s.Summary = "prior summary"

	next := ApplyDelta(s, StateDelta{IterationCount: IntPtr(3)})
	if next.Summary != "prior summary" {
		t.Errorf("expected untouched field preserved, got %q", next.Summary)
	}
	if next.IterationCount != 3 {
		t.Errorf("expected iterationCount applied, got %d", next.IterationCount)
	}
}

func TestApplyDelta_MessageDeltaGoesThroughReducer(t *testing.T) {
	t.Parallel()
	s := CreateState(&AgentState{})
	m := NewHumanMessage("hello")

	next := ApplyDelta(s, StateDelta{MessageDeltas: []Delta{m}})
	if len(next.Messages) != 1 || next.Messages[0].ID != m.ID {
		t.Fatalf("expected message appended via reducer, got %+v", next.Messages)
	}
}

func TestCheckInvariants_CatchesDuplicateIDs(t *testing.T) {
	t.Parallel()
	m := NewHumanMessage("hi")
	s := CreateState(&AgentState{})
	s.Messages = []Message{m, m}

	if err := CheckInvariants(s); err == nil {
		t.Fatal("expected duplicate message id to violate invariants")
	}
}

func TestCheckInvariants_CatchesDanglingToolResult(t *testing.T) {
	t.Parallel()
	s := CreateState(&AgentState{})
	s.Messages = []Message{NewToolResultMessage("missing-call", "bash", "output", ToolResultOK)}

	if err := CheckInvariants(s); err == nil {
		t.Fatal("expected dangling tool result to violate invariants")
	}
}

func TestCheckInvariants_AcceptsMatchedToolResult(t *testing.T) {
	t.Parallel()
	tc := ToolCall{ID: "tc1", Name: "bash", Args: map[string]any{"command": "ls"}}
	s := CreateState(&AgentState{})
	s.Messages = []Message{
		NewAssistantMessage("", []ToolCall{tc}, ""),
		NewToolResultMessage(tc.ID, "bash", "output", ToolResultOK),
	}

	if err := CheckInvariants(s); err != nil {
		t.Fatalf("expected valid state, got error: %v", err)
	}
}
