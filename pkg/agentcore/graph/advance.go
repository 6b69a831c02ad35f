package graph

import "github.com/devagent/agentcore/pkg/agentcore/state"

// advanceTodo implements the §4.3 "Advance-todo semantics" shared by the
// router's advance_todo node, loop detection, and the keyword-classified
// completion path in the executor.
func advanceTodo(s state.AgentState) state.StateDelta {
	next := s.CurrentTodoIndex + 1
	if next >= len(s.Todos) {
		return state.StateDelta{
			CurrentTodoIndex: state.IntPtr(len(s.Todos)),
			TaskStatus:       state.TaskStatusPtr(state.TaskCompleted),
		}
	}
	return state.StateDelta{
		CurrentTodoIndex: state.IntPtr(next),
		TaskCompleted:    state.BoolPtr(true),
		IterationCount:   state.IntPtr(0),
	}
}

// advanceTodoEndsTask reports whether advancing the cursor from s would
// exhaust the todo list, i.e. the delta advanceTodo(s) produces routes to END.
func advanceTodoEndsTask(s state.AgentState) bool {
	return s.CurrentTodoIndex+1 >= len(s.Todos)
}

// AdvanceTodoNode is the standalone `advance_todo` node the router's step 4
// routes to directly, distinct from the inline advance performed by the
// executor's own completion-keyword branch (§4.2 step 4, §4.3 "Advance-todo
// semantics").
func AdvanceTodoNode(s state.AgentState) NodeResult {
	delta := advanceTodo(s)
	next := NodeExecutor
	if advanceTodoEndsTask(s) {
		next = NodeEnd
	}
	return NodeResult{Delta: delta}.WithNext(next)
}
