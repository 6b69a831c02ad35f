package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/devagent/agentcore/pkg/agentcore/llm"
	"github.com/devagent/agentcore/pkg/agentcore/state"
)

// planResult is the Planner's first structured-output call (§4.5).
type planResult struct {
	ProjectPlanText   string   `json:"projectPlanText"`
	TechStackSummary  string   `json:"techStackSummary"`
	TargetDirectory   string   `json:"targetDirectory,omitempty"`
	ProjectInitSteps  []string `json:"projectInitSteps"`
}

// todoResult is the Planner's second structured-output call: task
// decomposition constrained to physical, file-system-or-shell actions.
type todoResult struct {
	Todos []string `json:"todos"`
}

// planSummaryMarker tags the system message the planner emits so a replay
// can detect it already ran (§4.5 "re-entry guard: planner must be
// idempotent on replay").
const planSummaryMarker = "# Plan summary"

// Planner is the Planner Node (C8, §4.5).
type Planner struct {
	Client llm.Client
	Logger *slog.Logger
}

func (n *Planner) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n *Planner) Run(ctx context.Context, s state.AgentState) (NodeResult, error) {
	if last, ok := state.LastMessage(s.Messages); ok && last.Role == state.RoleSystem && strings.HasPrefix(last.Content, planSummaryMarker) {
		// A prior planner run already emitted a summary for this turn;
		// re-entry (e.g. after a crash mid-checkpoint) must not re-plan.
		return NodeResult{}.WithNext(NodeExecutor), nil
	}

	plan, err := n.planProject(ctx, s)
	if err != nil {
		return NodeResult{Delta: state.StateDelta{
			MessageDeltas: []state.Delta{state.NewSystemMessage("Planning failed: " + err.Error())},
			Error:         state.StrPtr(err.Error()),
		}}.WithNext(NodeEnd), nil
	}

	todos, err := n.decomposeTasks(ctx, s, plan)
	if err != nil {
		return NodeResult{Delta: state.StateDelta{
			MessageDeltas: []state.Delta{state.NewSystemMessage("Task decomposition failed: " + err.Error())},
			Error:         state.StrPtr(err.Error()),
		}}.WithNext(NodeEnd), nil
	}

	projectRoot := s.ProjectRoot
	if plan.TargetDirectory != "" && plan.TargetDirectory != s.ProjectRoot {
		todos = append([]string{"create and initialize project root: " + plan.TargetDirectory}, todos...)
		projectRoot = plan.TargetDirectory
	}

	summary := fmt.Sprintf("%s\n%s\n\nTech stack: %s\n\nTasks:\n", planSummaryMarker, plan.ProjectPlanText, plan.TechStackSummary)
	for i, t := range todos {
		summary += fmt.Sprintf("%d. %s\n", i+1, t)
	}

	return NodeResult{Delta: state.StateDelta{
		MessageDeltas:    []state.Delta{state.NewSystemMessage(summary)},
		ProjectPlanText:  state.StrPtr(plan.ProjectPlanText),
		TechStackSummary: state.StrPtr(plan.TechStackSummary),
		ProjectInitSteps: state.StrSlicePtr(plan.ProjectInitSteps),
		ProjectRoot:      state.StrPtr(projectRoot),
		Todos:            state.StrSlicePtr(todos),
		CurrentTodoIndex: state.IntPtr(0),
		TaskStatus:       state.TaskStatusPtr(state.TaskExecuting),
		IterationCount:   state.IntPtr(0),
	}}.WithNext(NodeExecutor), nil
}

func (n *Planner) planProject(ctx context.Context, s state.AgentState) (planResult, error) {
	schema, err := structSchema("planResult", planResult{})
	if err != nil {
		return planResult{}, fmt.Errorf("build plan schema: %w", err)
	}
	prompt := append([]llm.Message{{
		Role: "system",
		Content: "Produce a project plan for the user's request: a short prose plan, a tech stack summary, " +
			"an optional target directory if this should live outside the current project root, and ordered " +
			"initialization steps. Respond via the structured schema only.",
	}}, promptFromHistory(s.Messages)...)
	if s.ProjectTreeText != "" {
		prompt = append(prompt, llm.Message{Role: "system", Content: "# Project tree\n" + s.ProjectTreeText})
	}

	reply, err := n.Client.Invoke(ctx, prompt, llm.Options{StructuredOutputSchema: schema})
	if err != nil {
		return planResult{}, err
	}
	var parsed planResult
	if err := json.Unmarshal([]byte(reply.Content), &parsed); err != nil {
		return planResult{}, fmt.Errorf("parse plan response: %w", err)
	}
	return parsed, nil
}

func (n *Planner) decomposeTasks(ctx context.Context, s state.AgentState, plan planResult) ([]string, error) {
	schema, err := structSchema("todoResult", todoResult{})
	if err != nil {
		return nil, fmt.Errorf("build todo schema: %w", err)
	}
	prompt := []llm.Message{
		{Role: "system", Content: "# Project plan\n" + plan.ProjectPlanText},
		{Role: "system", Content: "Decompose the plan into 4-8 concrete, physically observable engineering tasks: " +
			"create/write a file, install a dependency, run a command. Do not include cognitive tasks like " +
			"\"analyze\" or \"plan\" — those already happened. Respond via the structured schema only."},
	}

	reply, err := n.Client.Invoke(ctx, prompt, llm.Options{StructuredOutputSchema: schema})
	if err != nil {
		return nil, err
	}
	var parsed todoResult
	if err := json.Unmarshal([]byte(reply.Content), &parsed); err != nil {
		return nil, fmt.Errorf("parse todo response: %w", err)
	}
	return parsed.Todos, nil
}
