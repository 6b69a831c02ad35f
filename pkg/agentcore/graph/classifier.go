package graph

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/devagent/agentcore/pkg/agentcore/llm"
	"github.com/devagent/agentcore/pkg/agentcore/state"
)

// intentResult is the Intent Classifier's structured-output shape (§4.5).
type intentResult struct {
	Intent     string  `json:"intent" jsonschema:"enum=task,enum=chat"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// IntentClassifier is the Intent Classifier Node (C7, §4.5).
type IntentClassifier struct {
	Client llm.Client
	Logger *slog.Logger
}

func (n *IntentClassifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// Run makes one structured-output LLM call. On any failure it defaults to
// chat — the safe choice, since the user can simply retry (§4.5).
func (n *IntentClassifier) Run(ctx context.Context, s state.AgentState) NodeResult {
	schema, err := structSchema("intentResult", intentResult{})
	if err != nil {
		n.logger().Warn("intent schema build failed, defaulting to chat", "error", err)
		return NodeResult{Delta: state.StateDelta{UserIntent: state.UserIntentPtr(state.IntentChat)}}.WithNext(NodeChat)
	}

	prompt := append([]llm.Message{{
		Role:    "system",
		Content: "Classify the user's latest message as a concrete software-development task request or plain chat. Respond via the structured schema only.",
	}}, promptFromHistory(s.Messages)...)

	reply, err := n.Client.Invoke(ctx, prompt, llm.Options{StructuredOutputSchema: schema})
	if err != nil {
		n.logger().Warn("intent classification failed, defaulting to chat", "error", err)
		return NodeResult{Delta: state.StateDelta{UserIntent: state.UserIntentPtr(state.IntentChat)}}.WithNext(NodeChat)
	}

	var parsed intentResult
	if err := json.Unmarshal([]byte(reply.Content), &parsed); err != nil {
		n.logger().Warn("intent response unparseable, defaulting to chat", "error", err)
		return NodeResult{Delta: state.StateDelta{UserIntent: state.UserIntentPtr(state.IntentChat)}}.WithNext(NodeChat)
	}

	if parsed.Intent == string(state.IntentTask) {
		return NodeResult{Delta: state.StateDelta{UserIntent: state.UserIntentPtr(state.IntentTask)}}.WithNext(NodePlanner)
	}
	return NodeResult{Delta: state.StateDelta{UserIntent: state.UserIntentPtr(state.IntentChat)}}.WithNext(NodeChat)
}

func promptFromHistory(messages []state.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, toLLMMessage(m))
	}
	return out
}

// ChatResponder handles the chat short-circuit path (§4.5): a single LLM
// call with the full history, appended and routed straight to END.
type ChatResponder struct {
	Client llm.Client
	Logger *slog.Logger
}

func (n *ChatResponder) Run(ctx context.Context, s state.AgentState) (NodeResult, error) {
	reply, err := n.Client.Invoke(ctx, promptFromHistory(s.Messages), llm.Options{})
	if err != nil {
		return NodeResult{Delta: state.StateDelta{
			MessageDeltas: []state.Delta{state.NewSystemMessage("The assistant could not be reached: " + err.Error())},
			Error:         state.StrPtr(err.Error()),
		}}.WithNext(NodeEnd), nil
	}
	return NodeResult{Delta: state.StateDelta{
		MessageDeltas: []state.Delta{state.NewAssistantMessage(reply.Content, nil, reply.Reasoning)},
	}}.WithNext(NodeEnd), nil
}
