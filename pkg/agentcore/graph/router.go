// Package graph implements the Router (C5) and the graph driver that wires
// the node functions together into the control flow described in spec §2:
// START → Initializer → IntentClassifier → (chat-exit | Planner) →
// Executor ⇄ Router → {ToolDispatcher, Summarizer, Executor (continue),
// advance-todo→Executor, END}.
package graph

import (
	"strings"

	"github.com/devagent/agentcore/pkg/agentcore/state"
	"github.com/devagent/agentcore/pkg/agentcore/tools"
)

// NextNode is the router's output (§4.2).
type NextNode string

const (
	NodeTools       NextNode = "tools"
	NodeReview      NextNode = "review"
	NodeSummarize   NextNode = "summarize"
	NodeExecutor    NextNode = "executor"
	NodeAdvanceTodo NextNode = "advance_todo"
	NodeEnd         NextNode = "END"

	// NodeChat and NodePlanner only ever appear as a forced NodeResult.Next
	// from the Intent Classifier (§4.5); Route itself never produces them,
	// since they sit upstream of the executor loop Route governs.
	NodeChat    NextNode = "chat_responder"
	NodePlanner NextNode = "planner"
)

// DefaultSoftStuckThreshold and DefaultSummaryTrigger are the §4.2
// constants (the spec's own parenthetical examples, "e.g. 5" / "e.g. 40"),
// used whenever config.AgentConfig leaves the corresponding field unset.
const (
	DefaultSoftStuckThreshold = 5
	DefaultSummaryTrigger     = 40
)

// contentClass is the §4.3/§9 keyword classification of an Assistant
// message's textual content.
type contentClass string

const (
	classCompletion  contentClass = "completion-signal"
	classAskForHelp  contentClass = "ask-for-help"
	classContinuation contentClass = "continuation"
	classAmbiguous   contentClass = "ambiguous"
)

// completionKeywords and helpKeywords back ClassifyContent. Multi-language
// because the agent's users aren't all English speakers; per §9 this stays
// a pragmatic fallback, never the sole signal in a precision-sensitive path.
var completionKeywords = []string{
	"任务完成", "已完成", "completed", "done", "✅", "finished", "all set",
}

var helpKeywords = []string{
	"需要帮助", "let me know", "need help", "could you clarify", "please advise",
}

// ClassifyContent implements the §4.3 step 7 / §9 keyword predicate over an
// assistant message's plain-text content. It returns only classCompletion,
// classAskForHelp or classAmbiguous; no keyword list maps to
// classContinuation.
func ClassifyContent(content string) contentClass {
	lower := strings.ToLower(content)
	for _, kw := range completionKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) || strings.Contains(content, kw) {
			return classCompletion
		}
	}
	for _, kw := range helpKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) || strings.Contains(content, kw) {
			return classAskForHelp
		}
	}
	return classAmbiguous
}

// Route is the pure decision function (§4.2). It never mutates s and never
// calls the LLM or a tool; it only inspects the last message and the todo
// cursor. Given the same state it always returns the same NextNode.
// softStuckThreshold and summaryTrigger override DefaultSoftStuckThreshold
// and DefaultSummaryTrigger when positive (config.AgentConfig, threaded in
// via Driver.SoftStuckThreshold/SummaryTrigger).
func Route(s state.AgentState, registry *tools.Registry, softStuckThreshold, summaryTrigger int) NextNode {
	if softStuckThreshold <= 0 {
		softStuckThreshold = DefaultSoftStuckThreshold
	}
	if summaryTrigger <= 0 {
		summaryTrigger = DefaultSummaryTrigger
	}
	last, ok := state.LastMessage(s.Messages)
	if !ok {
		return NodeEnd
	}

	// Step 1: pending tool calls dominate every other signal.
	if last.HasToolCalls() {
		if anySensitive(last.ToolCalls, registry) && !s.DemoMode {
			return NodeReview
		}
		return NodeTools
	}

	// Step 2: a tool result always resumes the current todo without
	// advancing the cursor.
	if last.Role == state.RoleToolResult {
		return NodeExecutor
	}

	// Step 3: the cursor already ran off the end of the todo list.
	if len(s.Todos) > 0 && s.CurrentTodoIndex >= len(s.Todos) {
		return NodeEnd
	}

	// Step 4: classify the assistant's latest textual content.
	if last.Role == state.RoleAssistant {
		class := ClassifyContent(last.Content)
		recentTool := state.RecentToolResult(s.Messages, 10)
		switch {
		case class == classCompletion:
			return NodeAdvanceTodo
		case class == classAskForHelp && recentTool:
			return NodeAdvanceTodo
		case class == classContinuation:
			return NodeExecutor
		case class == classAmbiguous && s.IterationCount >= softStuckThreshold && !recentTool:
			return NodeAdvanceTodo
		default:
			return NodeExecutor
		}
	}

	// Step 5: the log has grown past the summarization trigger.
	if len(s.Messages) > summaryTrigger {
		return NodeSummarize
	}

	// Step 6: nothing left to do.
	return NodeEnd
}

func anySensitive(calls []state.ToolCall, registry *tools.Registry) bool {
	for _, c := range calls {
		if registry.IsSensitive(c.Name) {
			return true
		}
	}
	return false
}
