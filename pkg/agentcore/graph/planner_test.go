package graph

import (
	"context"
	"testing"

	"github.com/devagent/agentcore/pkg/agentcore/llm"
	"github.com/devagent/agentcore/pkg/agentcore/state"
)

func TestPlanner_Run_PopulatesTodosAndRoutesToExecutor(t *testing.T) {
	t.Parallel()
	client := &scriptedClient{replies: []llm.AssistantReply{
		{Content: `{"projectPlanText":"build a CLI","techStackSummary":"go","projectInitSteps":["go mod init"]}`},
		{Content: `{"todos":["write main.go","write tests"]}`},
	}}
	p := &Planner{Client: client}

	s := state.CreateState(nil)
	s.Messages = append(s.Messages, state.NewHumanMessage("build a CLI tool"))

	res, err := p.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Next == nil || *res.Next != NodeExecutor {
		t.Fatalf("expected forced next NodeExecutor, got %v", res.Next)
	}
	if res.Delta.Todos == nil || len(*res.Delta.Todos) != 2 {
		t.Fatalf("expected 2 todos in delta, got %+v", res.Delta.Todos)
	}
	if res.Delta.TaskStatus == nil || *res.Delta.TaskStatus != state.TaskExecuting {
		t.Fatalf("expected TaskExecuting, got %v", res.Delta.TaskStatus)
	}
}

func TestPlanner_Run_PrependsProjectRootTodoWhenTargetDirectoryDiffers(t *testing.T) {
	t.Parallel()
	client := &scriptedClient{replies: []llm.AssistantReply{
		{Content: `{"projectPlanText":"build a service","techStackSummary":"go","targetDirectory":"/work/newsvc","projectInitSteps":[]}`},
		{Content: `{"todos":["write main.go"]}`},
	}}
	p := &Planner{Client: client}

	s := state.CreateState(&state.AgentState{ProjectRoot: "/work/old"})
	s.Messages = append(s.Messages, state.NewHumanMessage("start a new service"))

	res, err := p.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	todos := *res.Delta.Todos
	if len(todos) != 2 {
		t.Fatalf("expected the init todo prepended, got %+v", todos)
	}
	if res.Delta.ProjectRoot == nil || *res.Delta.ProjectRoot != "/work/newsvc" {
		t.Fatalf("expected ProjectRoot updated to the target directory, got %v", res.Delta.ProjectRoot)
	}
}

func TestPlanner_Run_IdempotentOnReplayAfterSummaryMarker(t *testing.T) {
	t.Parallel()
	client := &scriptedClient{replies: []llm.AssistantReply{{Content: "should not be called"}}}
	p := &Planner{Client: client}

	s := state.CreateState(nil)
	s.Messages = append(s.Messages, state.NewSystemMessage(planSummaryMarker+"\nalready planned"))

	res, err := p.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.calls != 0 {
		t.Errorf("expected no LLM calls on replay, got %d", client.calls)
	}
	if res.Next == nil || *res.Next != NodeExecutor {
		t.Fatalf("expected forced next NodeExecutor on replay, got %v", res.Next)
	}
}

func TestPlanner_Run_PlanFailureRoutesToEnd(t *testing.T) {
	t.Parallel()
	p := &Planner{Client: &errorClient{err: context.DeadlineExceeded}}

	s := state.CreateState(nil)
	s.Messages = append(s.Messages, state.NewHumanMessage("build something"))

	res, err := p.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run should not itself error, got %v", err)
	}
	if res.Next == nil || *res.Next != NodeEnd {
		t.Fatalf("expected forced next NodeEnd on planning failure, got %v", res.Next)
	}
	if res.Delta.Error == nil {
		t.Fatal("expected Error set in the delta")
	}
}

type errorClient struct{ err error }

func (c *errorClient) Invoke(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.AssistantReply, error) {
	return llm.AssistantReply{}, c.err
}
