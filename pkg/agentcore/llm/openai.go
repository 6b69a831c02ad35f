package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient talks to any OpenAI-compatible chat-completions endpoint
// (OpenAI itself, or a compatible proxy). It is one concrete Client; the
// executor, planner, and classifiers depend only on the Client interface.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient builds a client against baseURL (e.g.
// "https://api.openai.com/v1") using model for every call unless a caller
// overrides it through a future per-call option.
func NewOpenAIClient(baseURL, apiKey, model string, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		// No client-wide timeout: every call is bounded by the context
		// passed to Invoke, so a long-running structured-output call
		// doesn't race a blanket deadline.
		httpClient: &http.Client{},
		logger:     logger.With("component", "llm.openai"),
	}
}

type wireContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireFunctionCall `json:"function"`
}

type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolDef struct {
	Type     string          `json:"type"`
	Function wireFunctionDef `json:"function"`
}

type wireFunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type wireResponseFormat struct {
	Type       string             `json:"type"`
	JSONSchema *wireJSONSchemaDef `json:"json_schema,omitempty"`
}

type wireJSONSchemaDef struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []wireMessage       `json:"messages"`
	Tools          []wireToolDef       `json:"tools,omitempty"`
	Temperature    *float64            `json:"temperature,omitempty"`
	ResponseFormat *wireResponseFormat `json:"response_format,omitempty"`
}

type chatChoice struct {
	Message struct {
		Content   string         `json:"content"`
		ToolCalls []wireToolCall `json:"tool_calls"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Invoke implements Client.
func (c *OpenAIClient) Invoke(ctx context.Context, messages []Message, opts Options) (AssistantReply, error) {
	timeout := time.Duration(opts.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := chatRequest{
		Model:    c.model,
		Messages: toWireMessages(messages),
	}
	if opts.Temperature != 0 {
		t := opts.Temperature
		req.Temperature = &t
	}
	for _, ts := range opts.ToolSchemas {
		req.Tools = append(req.Tools, wireToolDef{
			Type: "function",
			Function: wireFunctionDef{
				Name:        ts.Name,
				Description: ts.Description,
				Parameters:  ts.Parameters,
			},
		})
	}
	if opts.StructuredOutputSchema != nil {
		req.ResponseFormat = &wireResponseFormat{
			Type: "json_schema",
			JSONSchema: &wireJSONSchemaDef{
				Name:   "structured_output",
				Schema: opts.StructuredOutputSchema,
				Strict: true,
			},
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return AssistantReply{}, &ClientError{Kind: ErrorInvalidRequest, Message: "encode request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return AssistantReply{}, &ClientError{Kind: ErrorInvalidRequest, Message: "build request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return AssistantReply{}, &ClientError{Kind: ErrorTransient, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return AssistantReply{}, &ClientError{Kind: ErrorTransient, Message: "read response", Cause: err}
	}

	if resp.StatusCode >= 400 {
		kind := classifyStatus(resp.StatusCode, string(respBody))
		return AssistantReply{}, &ClientError{
			Kind:    kind,
			Message: fmt.Sprintf("provider returned %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return AssistantReply{}, &ClientError{Kind: ErrorInvalidRequest, Message: "decode response", Cause: err}
	}
	if len(parsed.Choices) == 0 {
		return AssistantReply{}, &ClientError{Kind: ErrorUnknown, Message: "empty choices in response"}
	}

	choice := parsed.Choices[0]
	reply := AssistantReply{
		Content: choice.Message.Content,
		Usage: &Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				// A malformed tool-call arguments blob is a schema violation
				// (§7), not a transport error. It is returned as a
				// non-retryable ErrorInvalidRequest; the executor does not
				// retry it or send a clarifying follow-up.
				return AssistantReply{}, &ClientError{Kind: ErrorInvalidRequest, Message: "malformed tool call arguments", Cause: err}
			}
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}
	return reply, nil
}

func toWireMessages(messages []Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wm := wireMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			argsJSON, _ := json.Marshal(tc.Args)
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunctionCall{
					Name:      tc.Name,
					Arguments: string(argsJSON),
				},
			})
		}
		out = append(out, wm)
	}
	return out
}

func classifyStatus(status int, body string) ErrorKind {
	lower := strings.ToLower(body)
	switch {
	case status == 401 || status == 403:
		return ErrorAuth
	case status == 400:
		if strings.Contains(lower, "context_length_exceeded") || strings.Contains(lower, "too many tokens") {
			return ErrorContextOverflow
		}
		return ErrorInvalidRequest
	case status == 429 || status == 529 || status >= 500:
		return ErrorTransient
	default:
		return ErrorUnknown
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
