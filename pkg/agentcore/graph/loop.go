package graph

import (
	"github.com/devagent/agentcore/pkg/agentcore/state"
	"github.com/devagent/agentcore/pkg/agentcore/tools"
)

// defaultDestructiveStreakThreshold bounds how many consecutive
// all-sensitive tool-call batches are tolerated before loop detection
// forces progress, even when the calls target different tools with
// different args (e.g. deleting many distinct files one at a time never
// repeats a tool name or argument, so detectRepeatTool never fires on
// it). Overridden by config.ToolLoopConfig.DestructiveStreakThreshold via
// Executor.DestructiveStreakThreshold when positive.
const defaultDestructiveStreakThreshold = 5

// fileWritingTools are exempt from the repeat-tool-call loop detector:
// writing many files in sequence with the same tool is legitimate
// progress, not a stuck loop (§4.3 step 4).
var fileWritingTools = map[string]struct{}{
	"write_file":  {},
	"append_file": {},
	"edit_file":   {},
}

func isFileWritingTool(name string) bool {
	_, ok := fileWritingTools[name]
	return ok
}

// loopDetection is the §4.3 step 4 result: which detector fired, if any,
// and a human-readable reason for the explanatory system message.
type loopDetection struct {
	Fired  bool
	Reason string
}

// detectLoop runs the spec's three detectors in order, then the
// destructive-batch-tracking signal; the first positive wins. threshold
// overrides defaultDestructiveStreakThreshold when positive.
func detectLoop(messages []state.Message, registry *tools.Registry, threshold int) loopDetection {
	if d := detectRepeatText(messages); d.Fired {
		return d
	}
	if d := detectRepeatTool(messages); d.Fired {
		return d
	}
	if d := detectRepeatReply(messages); d.Fired {
		return d
	}
	if d := detectDestructiveStreak(messages, registry, threshold); d.Fired {
		return d
	}
	return loopDetection{}
}

// detectDestructiveStreak flags threshold consecutive Assistant tool-call
// messages whose every call targets a sensitive tool, even when the tool
// name or args vary call to call. A long run of distinct destructive
// actions with no intervening plain-text reply is still worth surfacing,
// independent of detectRepeatTool's same-tool rule.
func detectDestructiveStreak(messages []state.Message, registry *tools.Registry, threshold int) loopDetection {
	if registry == nil {
		return loopDetection{}
	}
	if threshold <= 0 {
		threshold = defaultDestructiveStreakThreshold
	}
	streak := 0
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role == state.RoleToolResult {
			continue
		}
		if !m.HasToolCalls() {
			break
		}
		if !allSensitive(m.ToolCalls, registry) {
			break
		}
		streak++
		if streak >= threshold {
			return loopDetection{Fired: true, Reason: "loop detected: long run of destructive tool calls with no plain-text check-in"}
		}
	}
	return loopDetection{}
}

func allSensitive(calls []state.ToolCall, registry *tools.Registry) bool {
	if len(calls) == 0 {
		return false
	}
	for _, c := range calls {
		if !registry.IsSensitive(c.Name) {
			return false
		}
	}
	return true
}

// detectRepeatText: the last two Assistant messages share a prefix of
// length >= 50 and the latest has length > 10.
func detectRepeatText(messages []state.Message) loopDetection {
	last2 := state.LastAssistantMessages(messages, 2)
	if len(last2) < 2 {
		return loopDetection{}
	}
	a, b := last2[0], last2[1]
	if len(b.Content) <= 10 {
		return loopDetection{}
	}
	if commonPrefixLen(a.Content, b.Content) >= 50 {
		return loopDetection{Fired: true, Reason: "loop detected: repeated assistant text"}
	}
	return loopDetection{}
}

// detectRepeatTool: among the last 15 messages, the last 4 Assistant
// tool-call messages all call the same tool, except when that tool is a
// file-writing tool.
func detectRepeatTool(messages []state.Message) loopDetection {
	window := messages
	if len(window) > 15 {
		window = window[len(window)-15:]
	}
	var toolCallMsgs []state.Message
	for _, m := range window {
		if m.HasToolCalls() {
			toolCallMsgs = append(toolCallMsgs, m)
		}
	}
	if len(toolCallMsgs) < 4 {
		return loopDetection{}
	}
	last4 := toolCallMsgs[len(toolCallMsgs)-4:]
	first := firstToolName(last4[0])
	if first == "" || isFileWritingTool(first) {
		return loopDetection{}
	}
	for _, m := range last4[1:] {
		if firstToolName(m) != first {
			return loopDetection{}
		}
	}
	return loopDetection{Fired: true, Reason: "loop detected: repeated tool call to " + first}
}

func firstToolName(m state.Message) string {
	if len(m.ToolCalls) == 0 {
		return ""
	}
	return m.ToolCalls[0].Name
}

// detectRepeatReply: the last 3 Assistant messages with no tool calls have
// content prefixes that are mutually substring-similar (>= 100-char
// overlap) and length > 10.
func detectRepeatReply(messages []state.Message) loopDetection {
	var plain []state.Message
	for i := len(messages) - 1; i >= 0 && len(plain) < 3; i-- {
		m := messages[i]
		if m.Role == state.RoleAssistant && !m.HasToolCalls() {
			plain = append(plain, m)
		}
	}
	if len(plain) < 3 {
		return loopDetection{}
	}
	for _, m := range plain {
		if len(m.Content) <= 10 {
			return loopDetection{}
		}
	}
	if commonPrefixLen(plain[0].Content, plain[1].Content) >= 100 &&
		commonPrefixLen(plain[1].Content, plain[2].Content) >= 100 &&
		commonPrefixLen(plain[0].Content, plain[2].Content) >= 100 {
		return loopDetection{Fired: true, Reason: "loop detected: repeated assistant reply"}
	}
	return loopDetection{}
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
