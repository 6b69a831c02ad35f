package graph

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/devagent/agentcore/pkg/agentcore/state"
	"github.com/devagent/agentcore/pkg/agentcore/tools"
)

// maxParallelTools bounds the Tool Dispatcher's fan-out (§5: "the
// background-process manager... single executor thread", and the
// teacher's own parallel-unless-sequential policy for tool batches).
const maxParallelTools = 4

// sequentialTools must never run concurrently with other calls in the same
// batch — they share external state a parallel run could race.
var sequentialTools = map[string]struct{}{
	"manage_process": {},
}

func hasSequentialTool(calls []state.ToolCall) bool {
	for _, c := range calls {
		if _, ok := sequentialTools[c.Name]; ok {
			return true
		}
	}
	return false
}

// Dispatcher is the Tool Dispatcher Node (C10, §4.4).
type Dispatcher struct {
	Registry *tools.Registry
	Logger   *slog.Logger
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Run consumes PendingToolCalls: for each, looks up the tool, validates
// args against its schema, invokes it, and appends a ToolResult. It always
// clears PendingToolCalls, resets IterationCount, marks ProjectTreeInjected
// false, and routes to the executor (§4.4 contract). The dispatcher itself
// never blocks on human input — the approval interrupt is handled by the
// graph driver before Run is ever called.
func (d *Dispatcher) Run(ctx context.Context, s state.AgentState) (NodeResult, error) {
	calls := s.PendingToolCalls
	var results []state.Delta

	if hasSequentialTool(calls) || len(calls) <= 1 {
		for _, c := range calls {
			results = append(results, d.invokeOne(ctx, s, c))
		}
	} else {
		results = d.invokeParallel(ctx, s, calls)
	}

	return NodeResult{Delta: state.StateDelta{
		MessageDeltas:       results,
		PendingToolCalls:    state.ToolCallSlicePtr(nil),
		IterationCount:      state.IntPtr(0),
		ProjectTreeInjected: state.BoolPtr(false),
	}}.WithNext(NodeExecutor), nil
}

func (d *Dispatcher) invokeParallel(ctx context.Context, s state.AgentState, calls []state.ToolCall) []state.Delta {
	results := make([]state.Delta, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelTools)
	for i, c := range calls {
		i, c := i, c
		g.Go(func() error {
			results[i] = d.invokeOne(gctx, s, c)
			return nil
		})
	}
	_ = g.Wait() // invokeOne never returns an error to the group; failures become ToolResult{status: error}
	return results
}

func (d *Dispatcher) invokeOne(ctx context.Context, s state.AgentState, call state.ToolCall) state.Delta {
	tool, ok := d.Registry.Lookup(call.Name)
	if !ok {
		coreErr := &CoreError{Kind: KindToolFailure, Node: "dispatcher", Err: fmt.Errorf("unknown tool: %s", call.Name)}
		d.logger().Warn("tool lookup failed", "error", coreErr)
		return state.NewToolResultMessage(call.ID, call.Name, coreErr.Err.Error(), state.ToolResultError)
	}
	if err := tool.Validate(call.Args); err != nil {
		coreErr := &CoreError{Kind: KindSchemaViolation, Node: "dispatcher", Err: err}
		d.logger().Warn("tool args failed schema validation", "tool", call.Name, "error", coreErr)
		return state.NewToolResultMessage(call.ID, call.Name, err.Error(), state.ToolResultError)
	}

	execCtx := tools.ExecContext{Context: ctx, ProjectRoot: s.ProjectRoot, Logger: d.logger().With("tool", call.Name)}

	// A panicking tool is reported back to the LLM as a ToolResult error
	// rather than crashing the thread (§4.3 "Failure semantics": a tool
	// that raises is reported back to the LLM so it can recover).
	result := func() (r tools.Result) {
		defer func() {
			if rec := recover(); rec != nil {
				r = tools.Errf("tool %q panicked: %v", call.Name, rec)
			}
		}()
		return tool.Invoke(execCtx, call.Args)
	}()

	status := state.ToolResultOK
	if result.Status == tools.StatusError {
		status = state.ToolResultError
		if isRecoverableToolErrorContent(result.Content) {
			d.logger().Debug("recoverable tool error", "tool", call.Name, "error", result.Content)
		} else {
			d.logger().Warn("tool error", "tool", call.Name, "error", result.Content)
		}
	}
	return state.NewToolResultMessage(call.ID, call.Name, result.Content, status)
}

// RejectAll synthesizes a rejection ToolResult for every pending call, used
// when the human reviewer declines a sensitive batch (§4.4 "Approval
// interrupt"). It routes straight to the executor without ever invoking a
// tool.
func RejectAll(s state.AgentState) NodeResult {
	var results []state.Delta
	for _, c := range s.PendingToolCalls {
		results = append(results, state.NewToolResultMessage(c.ID, c.Name, "user rejected", state.ToolResultError))
	}
	return NodeResult{Delta: state.StateDelta{
		MessageDeltas:    results,
		PendingToolCalls: state.ToolCallSlicePtr(nil),
		IterationCount:   state.IntPtr(0),
	}}.WithNext(NodeExecutor)
}
