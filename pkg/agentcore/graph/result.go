package graph

import "github.com/devagent/agentcore/pkg/agentcore/state"

// NodeResult is what every node function returns: a partial state delta
// plus an optional forced next-node. When Next is nil the graph driver
// computes the next node itself by calling Route on the post-delta state —
// this is the normal path for the Executor's "classify reply" step (§4.3
// step 7), where the delta alone (which message got appended, whether it
// carries tool calls) fully determines the router's decision.
//
// Next is set explicitly only where a node's own internal logic decides
// the destination without it being inferable from the message log alone:
// summarization, budget exhaustion, completion, and loop detection (§4.3
// steps 1-4), and advance-todo's own END-vs-continue branch.
type NodeResult struct {
	Delta state.StateDelta
	Next  *NextNode
}

func forceNext(n NextNode) *NextNode { return &n }

// WithNext returns r with an explicit forced next-node.
func (r NodeResult) WithNext(n NextNode) NodeResult {
	r.Next = forceNext(n)
	return r
}
