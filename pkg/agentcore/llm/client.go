// Package llm defines the boundary to the remote LLM oracle (§6 "LLM
// interface") and ships one concrete OpenAI-compatible implementation,
// trimmed from the teacher's chat-completions client. The LLM itself is
// explicitly out of scope (§1): everything here is plumbing around a
// remote invoke() call, not model behavior.
package llm

import (
	"context"
	"time"
)

// Message is the wire shape handed to invoke(); it mirrors
// pkg/agentcore/state.Message closely enough that the graph package
// converts state messages field by field (toLLMMessage).
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall is a single requested tool invocation, wire-compatible with
// state.ToolCall.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolSchema describes one callable tool for the LLM's function-calling
// surface.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema, already decoded
}

// Options configures a single invoke() call (§6).
type Options struct {
	ToolSchemas            []ToolSchema
	StructuredOutputSchema map[string]any // when set, content must validate against this schema
	Temperature            float64
	TimeoutMs              int
}

// Usage reports token accounting for a single call, when the provider
// returns it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AssistantReply is the LLM's response to invoke() (§6).
type AssistantReply struct {
	Content    string
	ToolCalls  []ToolCall
	Reasoning  string
	Usage      *Usage
}

// Client is the remote oracle boundary every executor/planner/classifier
// call goes through. Implementations must not retry internally beyond
// transport-level reconnects; retry-with-backoff policy on top of this
// interface lives in the caller (§4.3 step 6), which needs to decide when
// retries are exhausted and surface a diagnostic.
type Client interface {
	Invoke(ctx context.Context, messages []Message, opts Options) (AssistantReply, error)
}

// ErrorKind classifies a Client error for the caller's retry policy,
// mirroring the teacher's classifyAPIError/LLMErrorKind split between
// transient and fatal provider errors.
type ErrorKind int

const (
	ErrorUnknown ErrorKind = iota
	ErrorTransient         // timeout, connection reset, 5xx, 429 — retry with backoff
	ErrorAuth              // bad/expired API key — not retryable
	ErrorInvalidRequest    // malformed request body — not retryable
	ErrorContextOverflow   // prompt too large for the model — caller should summarize and retry
)

func (k ErrorKind) Retryable() bool {
	return k == ErrorTransient
}

// ClientError wraps a Client failure with its classification.
type ClientError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error { return e.Cause }

// DefaultTimeout is used when Options.TimeoutMs is zero (§5: "LLM call: 60s default").
const DefaultTimeout = 60 * time.Second
