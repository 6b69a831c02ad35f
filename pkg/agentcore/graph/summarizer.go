package graph

import (
	"context"
	"fmt"

	"github.com/devagent/agentcore/pkg/agentcore/llm"
	"github.com/devagent/agentcore/pkg/agentcore/state"
)

// findSummarizationCut finds the largest prefix cut-point k such that
// messages[k] is not a ToolResult and k >= len(messages)-keepTail (§4.3
// step 1). This guarantees every orphaned tool-call/tool-result pair in
// the tail survives the cut.
func findSummarizationCut(messages []state.Message, keepTail int) int {
	minK := len(messages) - keepTail
	if minK < 0 {
		minK = 0
	}
	for k := len(messages) - 1; k >= minK; k-- {
		if messages[k].Role != state.RoleToolResult {
			return k
		}
	}
	// No eligible cut point in [minK, len-1]; keep searching toward 0
	// rather than ever cutting on a ToolResult.
	for k := minK - 1; k >= 0; k-- {
		if messages[k].Role != state.RoleToolResult {
			return k
		}
	}
	return 0
}

// runSummarization implements §4.3 step 1: request a summary of
// messages[0:k) from the LLM (no tools bound), tombstone those ids, set
// summary, and route back to the executor.
func (e *Executor) runSummarization(ctx context.Context, s state.AgentState) (NodeResult, error) {
	k := findSummarizationCut(s.Messages, KeepTail)
	prefix := s.Messages[:k]
	if len(prefix) == 0 {
		// Nothing old enough to summarize; fall through as a no-op tick.
		return NodeResult{}.WithNext(NodeExecutor), nil
	}

	summaryText, err := e.summarizePrefix(ctx, s.Summary, prefix)
	if err != nil {
		e.logger().Error("summarization failed", "error", err)
		return NodeResult{Delta: state.StateDelta{
			MessageDeltas: []state.Delta{state.NewSystemMessage("Could not summarize the conversation: " + err.Error())},
		}}.WithNext(NodeExecutor), nil
	}

	deltas := make([]state.Delta, 0, len(prefix))
	for _, m := range prefix {
		deltas = append(deltas, state.RemoveMessage{ID: m.ID})
	}

	return NodeResult{Delta: state.StateDelta{
		MessageDeltas: deltas,
		Summary:       state.StrPtr(summaryText),
	}}.WithNext(NodeExecutor), nil
}

// summarizePrefix is shared by the executor's inline step-1 trigger and
// the router's standalone `summarize` node (§4.6): both compress an older
// prefix into a textual recap emphasizing completed tasks, files touched,
// pending plan, and open questions.
func (e *Executor) summarizePrefix(ctx context.Context, priorSummary string, prefix []state.Message) (string, error) {
	instructions := llm.Message{Role: "system", Content: "Summarize the conversation so far in a few dense paragraphs. " +
		"Emphasize: completed tasks, files touched, the pending plan, and open questions. " +
		"This summary replaces the messages below in future context, so do not omit anything load-bearing."}
	var prompt []llm.Message
	prompt = append(prompt, instructions)
	if priorSummary != "" {
		prompt = append(prompt, llm.Message{Role: "system", Content: "Existing summary to extend:\n" + priorSummary})
	}
	for _, m := range prefix {
		prompt = append(prompt, toLLMMessage(m))
	}

	reply, err := e.Client.Invoke(ctx, prompt, llm.Options{})
	if err != nil {
		return "", fmt.Errorf("summarize prefix: %w", err)
	}
	return reply.Content, nil
}

// Summarize runs the router's standalone `summarize` node (§2, §4.6),
// triggered when the message log exceeds DefaultSummaryTrigger without
// having hit the executor's own summaryTrigger() inline check.
func (e *Executor) Summarize(ctx context.Context, s state.AgentState) (NodeResult, error) {
	return e.runSummarization(ctx, s)
}
