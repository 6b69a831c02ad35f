package graph

import (
	"fmt"
	"strings"

	"github.com/devagent/agentcore/pkg/agentcore/llm"
	"github.com/devagent/agentcore/pkg/agentcore/state"
)

// MaxTreeChars bounds the project-tree block injected into every executor
// prompt (§4.3 step 5).
const MaxTreeChars = 5000

// composePrompt builds the synthetic System context blocks in the order
// §4.3 step 5 specifies, then concatenates the full message log. Only
// non-empty blocks are included.
func composePrompt(s state.AgentState) []llm.Message {
	var systemBlocks []string

	if s.ProjectPlanText != "" {
		systemBlocks = append(systemBlocks, "# Project plan\n"+s.ProjectPlanText)
	}
	if s.ProjectTreeText != "" {
		tree := s.ProjectTreeText
		if len(tree) > MaxTreeChars {
			tree = tree[:MaxTreeChars] + "…"
		}
		systemBlocks = append(systemBlocks, "# Project tree\n"+tree)
	}
	if len(s.Todos) > 0 {
		idx := s.CurrentTodoIndex
		if idx < len(s.Todos) {
			systemBlocks = append(systemBlocks, fmt.Sprintf(
				"# Current task (%d of %d)\n%s\n\nRules: you must call tools for file operations; "+
					"you must emit an explicit \"✅ done\" signal on completion; you must not ask the user questions.",
				idx+1, len(s.Todos), s.Todos[idx]))
		}
	}
	if s.Summary != "" {
		systemBlocks = append(systemBlocks, "# Conversation summary\n"+s.Summary)
	}

	out := make([]llm.Message, 0, len(systemBlocks)+len(s.Messages))
	for _, block := range systemBlocks {
		out = append(out, llm.Message{Role: "system", Content: block})
	}
	for _, m := range s.Messages {
		out = append(out, toLLMMessage(m))
	}
	return out
}

func toLLMMessage(m state.Message) llm.Message {
	wire := llm.Message{Content: m.Content}
	switch m.Role {
	case state.RoleHuman:
		wire.Role = "user"
	case state.RoleAssistant:
		wire.Role = "assistant"
		for _, tc := range m.ToolCalls {
			wire.ToolCalls = append(wire.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Name, Args: tc.Args})
		}
	case state.RoleToolResult:
		wire.Role = "tool"
		wire.ToolCallID = m.ToolCallID
		wire.Name = m.ToolName
	case state.RoleSystem:
		wire.Role = "system"
	default:
		wire.Role = "user"
	}
	return wire
}

// reflectionNudge is injected every ReflectionInterval iterations (the
// teacher's own constant, see SPEC_FULL's SUPPLEMENTED FEATURES), as a
// synthetic System message reminding the model of elapsed budget.
const ReflectionInterval = 5

func reflectionNudge(s state.AgentState) string {
	return fmt.Sprintf(
		"Budget check: %d/%d iterations used on this task. If you are stuck, say so explicitly "+
			"instead of repeating the same approach.", s.IterationCount, s.MaxIterations)
}

// pruneOldToolResults soft-truncates ToolResult content older than
// softAgeIterations to maxChars, and tombstones ToolResult messages older
// than hardAgeIterations — the proactive pruning pass described in
// SPEC_FULL's SUPPLEMENTED FEATURES, run ahead of and independently from
// the hard summarization trigger in step 1.
func pruneOldToolResults(s state.AgentState, softAgeIterations, hardAgeIterations, maxChars int) state.StateDelta {
	// Age is approximated by position from the tail: messages further than
	// N tool-result-bearing turns from the end are "older". We walk from
	// the end and count ToolResult messages seen so far as the age clock,
	// matching the teacher's iteration-indexed pruning.
	var deltas []state.Delta
	age := 0
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role != state.RoleToolResult {
			continue
		}
		age++
		switch {
		case age > hardAgeIterations:
			deltas = append(deltas, state.RemoveMessage{ID: m.ID})
		case age > softAgeIterations && len(m.Content) > maxChars:
			// A replacement needs a fresh id: the reducer tombstones any
			// incoming message whose id also appears as a RemoveMessage in
			// the same batch, so reusing m.ID here would just drop it.
			truncated := state.NewToolResultMessage(m.ToolCallID, m.ToolName, m.Content[:maxChars]+"… [truncated]", m.Status)
			deltas = append(deltas, state.RemoveMessage{ID: m.ID}, truncated)
		}
	}
	if len(deltas) == 0 {
		return state.StateDelta{}
	}
	return state.StateDelta{MessageDeltas: deltas}
}

// isRecoverableToolErrorContent classifies a tool error's content the way
// the teacher's isRecoverableToolError does: transient-looking failures
// are logged quietly and don't count toward a no-progress streak.
func isRecoverableToolErrorContent(content string) bool {
	lower := strings.ToLower(content)
	for _, pattern := range []string{"timeout", "timed out", "connection reset", "rate limit", "temporarily unavailable", "econnreset"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
