// Package state – state.go defines AgentState, the single value threaded
// through every graph node, and the reducer semantics each field applies
// when a node returns a partial delta. Reducer semantics are explicit per
// field (replace vs. append-with-tombstones); nothing merges implicitly.
package state

import "os"

// TaskStatus is the coarse lifecycle of the current task.
type TaskStatus string

const (
	TaskPlanning  TaskStatus = "planning"
	TaskExecuting TaskStatus = "executing"
	TaskCompleted TaskStatus = "completed"
)

// UserIntent is the Intent Classifier's verdict on the current user turn.
type UserIntent string

const (
	IntentUnknown UserIntent = ""
	IntentTask    UserIntent = "task"
	IntentChat    UserIntent = "chat"
)

// AgentState is the single record carried between nodes and persisted at
// every checkpoint. Every field below has a fixed reducer: MessageDeltas
// goes through the tombstone-aware message reducer; everything else is a
// plain replace-if-present-in-delta.
type AgentState struct {
	Messages []Message `json:"messages"`
	Summary  string    `json:"summary"`

	ProjectRoot         string   `json:"projectRoot"`
	ProjectTreeInjected bool     `json:"projectTreeInjected"`
	ProjectTreeText     string   `json:"projectTreeText"`
	ProjectPlanText     string   `json:"projectPlanText"`
	TechStackSummary    string   `json:"techStackSummary"`
	ProjectInitSteps    []string `json:"projectInitSteps"`

	Todos            []string   `json:"todos"`
	CurrentTodoIndex int        `json:"currentTodoIndex"`
	TaskStatus       TaskStatus `json:"taskStatus"`
	TaskCompleted    bool       `json:"taskCompleted"`

	IterationCount int `json:"iterationCount"`
	MaxIterations  int `json:"maxIterations"`

	PendingToolCalls []ToolCall `json:"pendingToolCalls"`
	PendingFilePaths []string   `json:"pendingFilePaths"`

	Error    string     `json:"error"`
	DemoMode bool       `json:"demoMode"`
	UserIntent UserIntent `json:"userIntent"`
}

// DefaultMaxIterations is the per-thread iteration budget (§3 default 50).
const DefaultMaxIterations = 50

// CreateState returns a fully-defaulted AgentState, applying overrides on
// top of the defaults. overrides may be nil.
func CreateState(overrides *AgentState) AgentState {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	s := AgentState{
		Messages:         nil,
		Summary:          "",
		ProjectRoot:      wd,
		Todos:            nil,
		CurrentTodoIndex: 0,
		TaskStatus:       TaskPlanning,
		IterationCount:   0,
		MaxIterations:    DefaultMaxIterations,
		UserIntent:       IntentUnknown,
	}
	if overrides == nil {
		return s
	}
	if overrides.ProjectRoot != "" {
		s.ProjectRoot = overrides.ProjectRoot
	}
	if overrides.MaxIterations != 0 {
		s.MaxIterations = overrides.MaxIterations
	}
	if overrides.DemoMode {
		s.DemoMode = true
	}
	if len(overrides.PendingFilePaths) > 0 {
		s.PendingFilePaths = append([]string(nil), overrides.PendingFilePaths...)
	}
	if len(overrides.Todos) > 0 {
		s.Todos = append([]string(nil), overrides.Todos...)
	}
	return s
}

// StateDelta is a partial AgentState returned by a node. Pointer fields signal
// "set this field"; nil means "leave unchanged". MessageDeltas is append-only
// and goes through the tombstone-aware reducer regardless of the rest.
type StateDelta struct {
	MessageDeltas []Delta

	Summary *string

	ProjectRoot         *string
	ProjectTreeInjected *bool
	ProjectTreeText     *string
	ProjectPlanText     *string
	TechStackSummary    *string
	ProjectInitSteps    *[]string

	Todos            *[]string
	CurrentTodoIndex *int
	TaskStatus       *TaskStatus
	TaskCompleted    *bool

	IterationCount *int
	MaxIterations  *int

	PendingToolCalls *[]ToolCall
	PendingFilePaths *[]string

	Error      *string
	DemoMode   *bool
	UserIntent *UserIntent
}

// ApplyDelta applies a node's partial delta to state per-field and returns
// the resulting state. state is never mutated in place.
func ApplyDelta(s AgentState, d StateDelta) AgentState {
	next := s

	if d.MessageDeltas != nil {
		next.Messages = ReduceMessages(s.Messages, d.MessageDeltas)
	}
	if d.Summary != nil {
		next.Summary = *d.Summary
	}
	if d.ProjectRoot != nil {
		next.ProjectRoot = *d.ProjectRoot
	}
	if d.ProjectTreeInjected != nil {
		next.ProjectTreeInjected = *d.ProjectTreeInjected
	}
	if d.ProjectTreeText != nil {
		next.ProjectTreeText = *d.ProjectTreeText
	}
	if d.ProjectPlanText != nil {
		next.ProjectPlanText = *d.ProjectPlanText
	}
	if d.TechStackSummary != nil {
		next.TechStackSummary = *d.TechStackSummary
	}
	if d.ProjectInitSteps != nil {
		next.ProjectInitSteps = *d.ProjectInitSteps
	}
	if d.Todos != nil {
		next.Todos = *d.Todos
	}
	if d.CurrentTodoIndex != nil {
		next.CurrentTodoIndex = *d.CurrentTodoIndex
	}
	if d.TaskStatus != nil {
		next.TaskStatus = *d.TaskStatus
	}
	if d.TaskCompleted != nil {
		next.TaskCompleted = *d.TaskCompleted
	}
	if d.IterationCount != nil {
		next.IterationCount = *d.IterationCount
	}
	if d.MaxIterations != nil {
		next.MaxIterations = *d.MaxIterations
	}
	if d.PendingToolCalls != nil {
		next.PendingToolCalls = *d.PendingToolCalls
	}
	if d.PendingFilePaths != nil {
		next.PendingFilePaths = *d.PendingFilePaths
	}
	if d.Error != nil {
		next.Error = *d.Error
	}
	if d.DemoMode != nil {
		next.DemoMode = *d.DemoMode
	}
	if d.UserIntent != nil {
		next.UserIntent = *d.UserIntent
	}

	normalizeInvariants(&next)
	return next
}

// normalizeInvariants clamps fields that §3 declares invariant so a buggy
// node delta cannot silently corrupt the state machine.
func normalizeInvariants(s *AgentState) {
	if s.CurrentTodoIndex < 0 {
		s.CurrentTodoIndex = 0
	}
	if s.CurrentTodoIndex > len(s.Todos) {
		s.CurrentTodoIndex = len(s.Todos)
	}
	if len(s.Todos) == 0 && s.TaskStatus == TaskExecuting {
		s.TaskStatus = TaskPlanning
	}
	if len(s.Todos) > 0 && s.CurrentTodoIndex == len(s.Todos) {
		s.TaskStatus = TaskCompleted
	}
}

// Helper constructors for StateDelta pointer fields, mirroring the
// teacher's preference for small named helpers over inline &x literals
// scattered through node bodies.

func StrPtr(v string) *string         { return &v }
func BoolPtr(v bool) *bool            { return &v }
func IntPtr(v int) *int               { return &v }
func TaskStatusPtr(v TaskStatus) *TaskStatus { return &v }
func UserIntentPtr(v UserIntent) *UserIntent { return &v }
func StrSlicePtr(v []string) *[]string       { return &v }
func ToolCallSlicePtr(v []ToolCall) *[]ToolCall { return &v }
