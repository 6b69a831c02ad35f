package state

// ReduceMessages implements the only non-trivial reducer in the state
// container (§4.1). Given the current log and a mixed slice of Message and
// RemoveMessage deltas, it computes the tombstone set T, drops any existing
// message whose id is in T, then appends incoming messages whose id is not
// in T, skipping any whose id is already present in the surviving log
// (append-time deduplication).
func ReduceMessages(current []Message, incoming []Delta) []Message {
	tombstones := make(map[string]struct{})
	for _, d := range incoming {
		if rm, ok := d.(RemoveMessage); ok {
			tombstones[rm.ID] = struct{}{}
		}
	}

	survivors := make([]Message, 0, len(current))
	present := make(map[string]struct{}, len(current))
	for _, m := range current {
		if _, removed := tombstones[m.ID]; removed {
			continue
		}
		survivors = append(survivors, m)
		present[m.ID] = struct{}{}
	}

	for _, d := range incoming {
		m, ok := d.(Message)
		if !ok {
			continue // RemoveMessage never persists.
		}
		if _, removed := tombstones[m.ID]; removed {
			continue
		}
		if _, dup := present[m.ID]; dup {
			continue
		}
		survivors = append(survivors, m)
		present[m.ID] = struct{}{}
	}

	return survivors
}

// LastMessage returns the final message in the log, or the zero value and
// false if the log is empty.
func LastMessage(messages []Message) (Message, bool) {
	if len(messages) == 0 {
		return Message{}, false
	}
	return messages[len(messages)-1], true
}

// RecentToolResult reports whether a ToolResult message appears within the
// last n entries of the log (§4.3 step 7, §4.2 step 4 "following a recent
// tool execution").
func RecentToolResult(messages []Message, n int) bool {
	start := len(messages) - n
	if start < 0 {
		start = 0
	}
	for _, m := range messages[start:] {
		if m.Role == RoleToolResult {
			return true
		}
	}
	return false
}

// LastAssistantMessages returns, in chronological order, the last n
// Assistant messages in the log (fewer if the log has fewer).
func LastAssistantMessages(messages []Message, n int) []Message {
	out := make([]Message, 0, n)
	for i := len(messages) - 1; i >= 0 && len(out) < n; i-- {
		if messages[i].Role == RoleAssistant {
			out = append(out, messages[i])
		}
	}
	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
