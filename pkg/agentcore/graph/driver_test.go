package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/devagent/agentcore/pkg/agentcore/checkpoint"
	"github.com/devagent/agentcore/pkg/agentcore/llm"
	"github.com/devagent/agentcore/pkg/agentcore/state"
	"github.com/devagent/agentcore/pkg/agentcore/tools"
)

// scriptedClient replays one AssistantReply per call, in order, cycling
// the final entry once exhausted so tests never need to predict exactly
// how many Invoke calls a run makes.
type scriptedClient struct {
	replies []llm.AssistantReply
	calls   int
}

func (c *scriptedClient) Invoke(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.AssistantReply, error) {
	i := c.calls
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	c.calls++
	return c.replies[i], nil
}

func newTestDriver(t *testing.T, client llm.Client) *Driver {
	t.Helper()
	store, err := checkpoint.OpenSQLite(checkpoint.SQLiteConfig{Path: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry, err := tools.NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	return &Driver{
		Store:            store,
		Registry:         registry,
		Initializer:      &Initializer{},
		IntentClassifier: &IntentClassifier{Client: client},
		ChatResponder:    &ChatResponder{Client: client},
		Planner:          &Planner{Client: client},
		Executor:         &Executor{Client: client, Registry: registry},
	}
}

func TestDriver_Start_ChatPathEndsImmediately(t *testing.T) {
	t.Parallel()
	client := &scriptedClient{replies: []llm.AssistantReply{
		{Content: `{"intent":"chat","confidence":0.9,"reasoning":"small talk"}`},
		{Content: "Hi there!"},
	}}
	d := newTestDriver(t, client)

	s := state.CreateState(nil)
	s.Messages = append(s.Messages, state.NewHumanMessage("hello"))

	out, err := d.Start(context.Background(), "thread-chat", s)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	last, ok := state.LastMessage(out.Messages)
	if !ok || last.Role != state.RoleAssistant || last.Content != "Hi there!" {
		t.Errorf("expected final assistant message 'Hi there!', got %+v", last)
	}
}

func TestDriver_Start_TaskPathRunsToCompletion(t *testing.T) {
	t.Parallel()
	client := &scriptedClient{replies: []llm.AssistantReply{
		{Content: `{"intent":"task","confidence":0.9,"reasoning":"build something"}`},
		{Content: `{"projectPlanText":"write a file","techStackSummary":"go","projectInitSteps":[]}`},
		{Content: `{"todos":["write hello.txt"]}`},
		{Content: "done"},
	}}
	d := newTestDriver(t, client)

	s := state.CreateState(nil)
	s.Messages = append(s.Messages, state.NewHumanMessage("write hello.txt"))

	out, err := d.Start(context.Background(), "thread-task", s)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if out.TaskStatus != state.TaskCompleted {
		t.Errorf("expected TaskCompleted, got %v", out.TaskStatus)
	}
	if out.CurrentTodoIndex != len(out.Todos) {
		t.Errorf("expected all todos advanced past, got index %d of %d", out.CurrentTodoIndex, len(out.Todos))
	}
}

func TestDriver_RunLoop_RecursionLimitExceeded(t *testing.T) {
	t.Parallel()
	// Every executor call returns an ambiguous, non-completing reply with
	// no tool calls. The soft-stuck threshold is set beyond the step budget
	// so the executor never advances the todo on its own; the loop must
	// hit the recursion limit (3 + 15*1 = 18 steps).
	client := &scriptedClient{replies: []llm.AssistantReply{
		{Content: `{"intent":"task","confidence":0.9,"reasoning":"loop forever"}`},
		{Content: `{"projectPlanText":"p","techStackSummary":"s","projectInitSteps":[]}`},
		{Content: `{"todos":["one todo that never finishes"]}`},
		{Content: "still thinking..."},
	}}
	d := newTestDriver(t, client)
	d.RecursionLimitBase = 3
	d.Executor.SoftStuckThreshold = 100

	s := state.CreateState(nil)
	s.Messages = append(s.Messages, state.NewHumanMessage("never stop"))

	_, err := d.Start(context.Background(), "thread-limit", s)
	if !errors.Is(err, ErrRecursionLimit) {
		t.Fatalf("expected ErrRecursionLimit, got %v", err)
	}
}

func TestDriver_Resume_RejectsWithoutSuspendedCheckpoint(t *testing.T) {
	t.Parallel()
	client := &scriptedClient{replies: []llm.AssistantReply{{Content: "hi"}}}
	d := newTestDriver(t, client)

	ctx := context.Background()
	s := state.CreateState(nil)
	if _, _, err := d.commit(ctx, "thread-resume", s, state.StateDelta{}, 0, "initializer"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if _, err := d.Resume(ctx, "thread-resume", ApprovalProceed); err == nil {
		t.Fatal("expected an error resuming a thread that is not suspended for review")
	}
}

func TestDriver_Resume_NoCheckpointIsAnError(t *testing.T) {
	t.Parallel()
	d := newTestDriver(t, &scriptedClient{})
	if _, err := d.Resume(context.Background(), "no-such-thread", ApprovalProceed); err == nil {
		t.Fatal("expected an error resuming a thread with no checkpoints")
	}
}

func TestDriver_Commit_InvariantBreachIsFatalAndNotCheckpointed(t *testing.T) {
	t.Parallel()
	d := newTestDriver(t, &scriptedClient{})
	ctx := context.Background()
	s := state.CreateState(nil)

	// IterationCount exceeding MaxIterations violates the §3 budget
	// invariant; ApplyDelta's normalization pass never touches either
	// field, so this reaches CheckInvariants unclamped.
	badDelta := state.StateDelta{IterationCount: state.IntPtr(s.MaxIterations + 1)}
	_, _, err := d.commit(ctx, "thread-breach", s, badDelta, 0, "executor")

	var coreErr *CoreError
	if !errors.As(err, &coreErr) || coreErr.Kind != KindInvariantBreach {
		t.Fatalf("expected a KindInvariantBreach CoreError, got %v", err)
	}

	if _, ok, getErr := d.Store.GetTuple(ctx, checkpoint.Config{ThreadID: "thread-breach"}); getErr != nil || ok {
		t.Fatalf("expected no checkpoint to be persisted after an invariant breach, found=%v err=%v", ok, getErr)
	}
}
