package state

import "fmt"

// CheckInvariants validates the §3 invariants that must hold after every
// reducer application. It is used by tests and by the graph driver's
// commit step after every node return — a violation here is an Invariant
// Breach per §7 (graph.CoreError with Kind graph.KindInvariantBreach) and
// is always fatal to the thread: commit refuses to checkpoint the bad
// state.
func CheckInvariants(s AgentState) error {
	if s.CurrentTodoIndex < 0 || s.CurrentTodoIndex > len(s.Todos) {
		return fmt.Errorf("currentTodoIndex %d out of range [0,%d]", s.CurrentTodoIndex, len(s.Todos))
	}
	if len(s.Todos) == 0 && s.TaskStatus != TaskPlanning && s.TaskStatus != TaskCompleted {
		return fmt.Errorf("empty todos with taskStatus %q", s.TaskStatus)
	}
	if s.IterationCount > s.MaxIterations {
		return fmt.Errorf("iterationCount %d exceeds maxIterations %d", s.IterationCount, s.MaxIterations)
	}

	seen := make(map[string]struct{}, len(s.Messages))
	toolCallIDs := make(map[string]struct{})
	for _, m := range s.Messages {
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("duplicate message id %q", m.ID)
		}
		seen[m.ID] = struct{}{}

		if m.Role == RoleAssistant {
			for _, tc := range m.ToolCalls {
				toolCallIDs[tc.ID] = struct{}{}
			}
		}
		if m.Role == RoleToolResult {
			if _, ok := toolCallIDs[m.ToolCallID]; !ok {
				return fmt.Errorf("tool result %q references unknown tool call %q", m.ID, m.ToolCallID)
			}
		}
	}
	return nil
}
