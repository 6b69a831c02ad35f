package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devagent/agentcore/pkg/agentcore/llm"
	"github.com/devagent/agentcore/pkg/agentcore/state"
	"github.com/devagent/agentcore/pkg/agentcore/tools"
)

// KeepTail is the §4.3 step 1 constant bounding how many recent messages
// survive a hard summarization pass.
const KeepTail = 10

// MaxLLMRetries and RetryBaseDelay govern the bounded exponential backoff
// for transport/timeout failures (§4.3 step 6, §7 "Transient I/O").
const (
	MaxLLMRetries  = 3
	RetryBaseDelay = 500 * time.Millisecond
)

// Executor is the core loop body (C9, §4.3). It composes a prompt, invokes
// the LLM bound to the tool registry's schemas, classifies the reply,
// detects pathological cycles, and returns a state delta plus, where its
// own internal logic decides the destination outright (summarization,
// budget, completion, loop detection), a forced next node.
type Executor struct {
	Client   llm.Client
	Registry *tools.Registry
	Logger   *slog.Logger

	// SoftStuckThreshold, SummaryTrigger, and DestructiveStreakThreshold
	// override the package-level defaults (router.DefaultSoftStuckThreshold,
	// router.DefaultSummaryTrigger, loop.defaultDestructiveStreakThreshold)
	// when non-zero, sourced from config.AgentConfig/config.ToolLoopConfig.
	SoftStuckThreshold         int
	SummaryTrigger             int
	DestructiveStreakThreshold int
}

func (e *Executor) softStuckThreshold() int {
	if e.SoftStuckThreshold > 0 {
		return e.SoftStuckThreshold
	}
	return DefaultSoftStuckThreshold
}

func (e *Executor) summaryTrigger() int {
	if e.SummaryTrigger > 0 {
		return e.SummaryTrigger
	}
	return DefaultSummaryTrigger
}

func (e *Executor) destructiveStreakThreshold() int {
	if e.DestructiveStreakThreshold > 0 {
		return e.DestructiveStreakThreshold
	}
	return defaultDestructiveStreakThreshold
}

// Run executes one executor tick.
func (e *Executor) Run(ctx context.Context, s state.AgentState) (NodeResult, error) {
	logger := e.logger()

	// Step 1 — summarization check.
	if len(s.Messages) > e.summaryTrigger() {
		return e.runSummarization(ctx, s)
	}

	// Step 2 — budget check.
	if s.IterationCount >= s.MaxIterations {
		coreErr := &CoreError{Kind: KindBudgetExhausted, Node: "executor", Err: fmt.Errorf(
			"iterationCount %d reached maxIterations %d", s.IterationCount, s.MaxIterations)}
		logger.Warn("budget exhausted", "iterationCount", s.IterationCount, "maxIterations", s.MaxIterations)
		return NodeResult{
			Delta: state.StateDelta{
				MessageDeltas: []state.Delta{state.NewSystemMessage(fmt.Sprintf(
					"Stopping: reached the iteration budget (%d) without a completion signal.", s.MaxIterations))},
				TaskStatus: state.TaskStatusPtr(state.TaskCompleted),
				Error:      state.StrPtr(coreErr.Error()),
			},
		}.WithNext(NodeEnd), nil
	}

	// Step 3 — completion check.
	if len(s.Todos) > 0 && s.CurrentTodoIndex >= len(s.Todos) {
		return NodeResult{
			Delta: state.StateDelta{
				MessageDeltas: []state.Delta{state.NewSystemMessage("All tasks completed.")},
				TaskStatus:    state.TaskStatusPtr(state.TaskCompleted),
			},
		}.WithNext(NodeEnd), nil
	}

	// Step 4 — loop detection.
	if d := detectLoop(s.Messages, e.Registry, e.destructiveStreakThreshold()); d.Fired {
		coreErr := &CoreError{Kind: KindLoopDetected, Node: "executor", Err: errors.New(d.Reason)}
		logger.Warn("loop detected, forcing progress", "kind", coreErr.Kind, "reason", d.Reason)
		delta := advanceTodo(s)
		delta.MessageDeltas = []state.Delta{state.NewSystemMessage(d.Reason)}
		next := NodeExecutor
		if advanceTodoEndsTask(s) {
			next = NodeEnd
		}
		return NodeResult{Delta: delta}.WithNext(next), nil
	}

	// Step 5 — prompt composition, with proactive pruning ahead of it.
	pruneDelta := pruneOldToolResults(s, 5, 10, 500)
	pruned := state.ApplyDelta(s, pruneDelta)
	prompt := composePrompt(pruned)
	if e.reflectionDue(s) {
		prompt = append(prompt, llm.Message{Role: "system", Content: reflectionNudge(s)})
	}

	// Step 6 — LLM call with bounded retry + exponential backoff.
	reply, err := e.invokeWithRetry(ctx, prompt, toolSchemas(e.Registry))
	if err != nil {
		coreErr := &CoreError{Kind: KindTransient, Node: "executor", Err: err}
		logger.Error("llm call failed after retries", "error", coreErr)
		delta := pruneDelta
		delta.MessageDeltas = append(delta.MessageDeltas, state.NewSystemMessage("Stopping: the model could not be reached: "+err.Error()))
		delta.Error = state.StrPtr(coreErr.Error())
		delta.TaskStatus = state.TaskStatusPtr(state.TaskCompleted)
		return NodeResult{Delta: delta}.WithNext(NodeEnd), nil
	}

	// Step 7 — classify reply.
	classified := e.classifyReply(pruned, reply)
	classified.MessageDeltas = append(pruneDelta.MessageDeltas, classified.MessageDeltas...)
	return NodeResult{Delta: classified.Delta}.withOptionalNext(classified.Next), nil
}

func (r NodeResult) withOptionalNext(n *NextNode) NodeResult {
	r.Next = n
	return r
}

func (e *Executor) classifyReply(s state.AgentState, reply llm.AssistantReply) NodeResult {
	var toolCalls []state.ToolCall
	for _, tc := range reply.ToolCalls {
		toolCalls = append(toolCalls, state.ToolCall{ID: tc.ID, Name: tc.Name, Args: tc.Args})
	}
	assistantMsg := state.NewAssistantMessage(reply.Content, toolCalls, reply.Reasoning)

	if len(toolCalls) > 0 {
		return NodeResult{Delta: state.StateDelta{
			MessageDeltas:    []state.Delta{assistantMsg},
			PendingToolCalls: state.ToolCallSlicePtr(toolCalls),
			IterationCount:   state.IntPtr(s.IterationCount + 1),
		}}
		// Next is left nil: the graph driver computes tools-vs-review via
		// Route on the post-delta state, which inspects the new last
		// message's tool calls and sensitivity exactly as step 1 of §4.2
		// does.
	}

	class := ClassifyContent(reply.Content)
	recentTool := state.RecentToolResult(s.Messages, 10)
	softStuck := s.IterationCount >= e.softStuckThreshold()

	switch {
	case class == classCompletion:
		d := advanceTodo(s)
		d.MessageDeltas = []state.Delta{assistantMsg}
		next := NodeExecutor
		if advanceTodoEndsTask(s) {
			next = NodeEnd
		}
		return NodeResult{Delta: d}.WithNext(next)
	case class == classAskForHelp && recentTool:
		d := advanceTodo(s)
		d.MessageDeltas = []state.Delta{assistantMsg}
		next := NodeExecutor
		if advanceTodoEndsTask(s) {
			next = NodeEnd
		}
		return NodeResult{Delta: d}.WithNext(next)
	case class == classAmbiguous && softStuck && !recentTool:
		d := advanceTodo(s)
		d.MessageDeltas = []state.Delta{assistantMsg}
		next := NodeExecutor
		if advanceTodoEndsTask(s) {
			next = NodeEnd
		}
		return NodeResult{Delta: d}.WithNext(next)
	default:
		return NodeResult{Delta: state.StateDelta{
			MessageDeltas:  []state.Delta{assistantMsg},
			IterationCount: state.IntPtr(s.IterationCount + 1),
		}}.WithNext(NodeExecutor)
	}
}

func (e *Executor) reflectionDue(s state.AgentState) bool {
	return s.IterationCount > 0 && s.IterationCount%ReflectionInterval == 0
}

func (e *Executor) invokeWithRetry(ctx context.Context, messages []llm.Message, schemas []llm.ToolSchema) (llm.AssistantReply, error) {
	var lastErr error
	delay := RetryBaseDelay
	for attempt := 0; attempt <= MaxLLMRetries; attempt++ {
		reply, err := e.Client.Invoke(ctx, messages, llm.Options{ToolSchemas: schemas})
		if err == nil {
			return reply, nil
		}
		lastErr = err
		var clientErr *llm.ClientError
		if !errors.As(err, &clientErr) || !clientErr.Kind.Retryable() {
			return llm.AssistantReply{}, err
		}
		if attempt == MaxLLMRetries {
			break
		}
		e.logger().Warn("llm call failed, retrying", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return llm.AssistantReply{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return llm.AssistantReply{}, fmt.Errorf("exhausted %d retries: %w", MaxLLMRetries, lastErr)
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func toolSchemas(r *tools.Registry) []llm.ToolSchema {
	if r == nil {
		return nil
	}
	var out []llm.ToolSchema
	for _, name := range r.Names() {
		t, ok := r.Lookup(name)
		if !ok {
			continue
		}
		var params map[string]any
		if len(t.Schema) > 0 {
			_ = json.Unmarshal(t.Schema, &params)
		}
		out = append(out, llm.ToolSchema{Name: t.Name, Description: t.Description, Parameters: params})
	}
	return out
}
