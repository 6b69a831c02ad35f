package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/devagent/agentcore/pkg/agentcore/checkpoint"
	"github.com/devagent/agentcore/pkg/agentcore/state"
	"github.com/devagent/agentcore/pkg/agentcore/tools"
)

// ErrSuspended is returned by Start/Resume when the thread has stopped at
// the review interrupt (§4.4 "Approval interrupt"). It is not a failure:
// the caller persists no new work itself (the driver already checkpointed)
// and later calls Resume with the human's decision.
var ErrSuspended = errors.New("graph: suspended for human approval")

// ErrRecursionLimit is returned when a thread exceeds its step budget
// (§6 "--recursion-limit, default 20 + 15 * taskCount").
var ErrRecursionLimit = errors.New("graph: recursion limit exceeded")

// RecursionLimitBase and RecursionLimitPerTask compute the default
// per-thread step budget (§6).
const (
	RecursionLimitBase    = 20
	RecursionLimitPerTask = 15
)

// ApprovalDecision is the external signal that resumes a suspended review
// node (§4.4).
type ApprovalDecision string

const (
	ApprovalProceed ApprovalDecision = "proceed"
	ApprovalReject  ApprovalDecision = "reject"
)

// Driver wires the node functions into the control flow of §2:
// START → Initializer → IntentClassifier → (ChatResponder | Planner) →
// Executor ⇄ Router → {Dispatcher, Summarizer, Executor, AdvanceTodo, END},
// with the review interrupt sitting between the router and the dispatcher.
// Exactly one node runs at a time per thread (§5 "Scheduling"); distinct
// threads share only the registry and the checkpoint store.
type Driver struct {
	Store    checkpoint.Store
	Registry *tools.Registry

	Initializer      *Initializer
	IntentClassifier *IntentClassifier
	ChatResponder    *ChatResponder
	Planner          *Planner
	Executor         *Executor
	Logger           *slog.Logger

	// RecursionLimitBase overrides the package-level RecursionLimitBase
	// constant when non-zero (§6 "--recursion-limit-base").
	RecursionLimitBase int

	// SoftStuckThreshold and SummaryTrigger override Route's package
	// defaults when non-zero, sourced from config.AgentConfig.
	SoftStuckThreshold int
	SummaryTrigger     int

	dispatcher *Dispatcher
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Driver) dispatcherNode() *Dispatcher {
	if d.dispatcher == nil {
		d.dispatcher = &Dispatcher{Registry: d.Registry, Logger: d.Logger}
	}
	return d.dispatcher
}

func (d *Driver) recursionLimit(s state.AgentState) int {
	base := RecursionLimitBase
	if d.RecursionLimitBase > 0 {
		base = d.RecursionLimitBase
	}
	return base + RecursionLimitPerTask*len(s.Todos)
}

// Start begins a new turn on threadID: s must already carry the new human
// message appended (the driver has no opinion on how a turn's input is
// composed). If threadID has prior checkpoints, the caller is responsible
// for having seeded s from the latest one; Start does not merge history
// itself, since the caller appends the human message onto the seeded
// Messages before Start is called.
func (d *Driver) Start(ctx context.Context, threadID string, s state.AgentState) (state.AgentState, error) {
	step := 0

	initRes := d.Initializer.Run(s)
	var err error
	s, step, err = d.commit(ctx, threadID, s, initRes.Delta, step, "initializer")
	if err != nil {
		return s, err
	}

	classifyRes := d.IntentClassifier.Run(ctx, s)
	s, step, err = d.commit(ctx, threadID, s, classifyRes.Delta, step, "intent_classifier")
	if err != nil {
		return s, err
	}

	next := NodeChat
	if classifyRes.Next != nil {
		next = *classifyRes.Next
	}

	switch next {
	case NodeChat:
		chatRes, cerr := d.ChatResponder.Run(ctx, s)
		if cerr != nil {
			return s, cerr
		}
		s, step, err = d.commit(ctx, threadID, s, chatRes.Delta, step, "chat_responder")
		if err != nil {
			return s, err
		}
		return s, nil
	case NodePlanner:
		planRes, perr := d.Planner.Run(ctx, s)
		if perr != nil {
			return s, perr
		}
		s, step, err = d.commit(ctx, threadID, s, planRes.Delta, step, "planner")
		if err != nil {
			return s, err
		}
		return d.runLoop(ctx, threadID, s, step, NodeExecutor)
	default:
		return s, fmt.Errorf("graph: intent classifier produced unexpected next node %q", next)
	}
}

// Resume loads threadID's latest checkpoint, which must currently be
// suspended at the review interrupt, applies the human's decision, and
// continues the executor loop (§4.4).
func (d *Driver) Resume(ctx context.Context, threadID string, decision ApprovalDecision) (state.AgentState, error) {
	tuple, ok, err := d.Store.GetTuple(ctx, checkpoint.Config{ThreadID: threadID})
	if err != nil {
		return state.AgentState{}, fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return state.AgentState{}, fmt.Errorf("graph: no checkpoint for thread %q", threadID)
	}
	s := tuple.Checkpoint.State
	step := tuple.Checkpoint.Step

	if Route(s, d.Registry, d.SoftStuckThreshold, d.SummaryTrigger) != NodeReview {
		return s, fmt.Errorf("graph: thread %q is not suspended for review", threadID)
	}

	var res NodeResult
	if decision == ApprovalProceed {
		res, err = d.dispatcherNode().Run(ctx, s)
		if err != nil {
			return s, err
		}
	} else {
		res = RejectAll(s)
	}

	s, step, err = d.commit(ctx, threadID, s, res.Delta, step, "dispatcher")
	if err != nil {
		return s, err
	}

	next := NodeExecutor
	if res.Next != nil {
		next = *res.Next
	}
	return d.runLoop(ctx, threadID, s, step, next)
}

// runLoop drives the executor⇄router cycle (§4.2, §4.3) until END,
// suspension, or the recursion limit.
func (d *Driver) runLoop(ctx context.Context, threadID string, s state.AgentState, step int, current NextNode) (state.AgentState, error) {
	for {
		if limit := d.recursionLimit(s); step >= limit {
			d.logger().Warn("recursion limit reached", "threadId", threadID, "step", step, "limit", limit)
			return s, ErrRecursionLimit
		}

		if current == NodeReview {
			d.logger().Info("suspending for human approval", "threadId", threadID)
			return s, ErrSuspended
		}
		if current == NodeEnd {
			return s, nil
		}

		var res NodeResult
		var label string
		var err error

		switch current {
		case NodeExecutor:
			label = "executor"
			res, err = d.Executor.Run(ctx, s)
		case NodeTools:
			label = "dispatcher"
			res, err = d.dispatcherNode().Run(ctx, s)
		case NodeSummarize:
			label = "summarizer"
			res, err = d.Executor.Summarize(ctx, s)
		case NodeAdvanceTodo:
			label = "advance_todo"
			res = AdvanceTodoNode(s)
		default:
			return s, fmt.Errorf("graph: runLoop reached unexpected node %q", current)
		}
		if err != nil {
			return s, err
		}

		s, step, err = d.commit(ctx, threadID, s, res.Delta, step, label)
		if err != nil {
			return s, err
		}

		if res.Next != nil {
			current = *res.Next
		} else {
			current = Route(s, d.Registry, d.SoftStuckThreshold, d.SummaryTrigger)
		}
	}
}

// commit applies a node's delta, checks the §3 invariants against the
// result, persists a checkpoint before acknowledging completion to the
// rest of the driver (§5 "Checkpointing: the checkpointer persists after
// every node"), and returns the incremented step counter. An invariant
// breach is fatal to the thread: the bad state is never checkpointed.
func (d *Driver) commit(ctx context.Context, threadID string, s state.AgentState, delta state.StateDelta, step int, node string) (state.AgentState, int, error) {
	next := state.ApplyDelta(s, delta)
	if err := state.CheckInvariants(next); err != nil {
		d.logger().Debug("invariant check failed", "threadId", threadID, "node", node, "error", err)
		return s, step, &CoreError{Kind: KindInvariantBreach, Node: node, Err: err}
	}
	step++

	parentID := ""
	if tuple, ok, err := d.Store.GetTuple(ctx, checkpoint.Config{ThreadID: threadID}); err == nil && ok {
		parentID = tuple.Checkpoint.ID
	}

	cp := checkpoint.Checkpoint{
		ThreadID: threadID,
		Step:     step,
		ParentID: parentID,
		State:    next,
	}
	if _, err := d.Store.Put(ctx, checkpoint.Config{ThreadID: threadID}, cp, checkpoint.Metadata{"node": node}); err != nil {
		return s, step, fmt.Errorf("checkpoint after %s: %w", node, err)
	}
	return next, step, nil
}
