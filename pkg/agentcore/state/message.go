// Package state – message.go defines the tagged-variant Message type that
// makes up the agent's message log, plus the tombstone record used to
// delete messages through the reducer.
//
// Dispatch on message kind is always on the Role field; there is no
// runtime type sniffing.
package state

import "github.com/google/uuid"

// Role tags the variant a Message carries.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleToolResult Role = "tool_result"
	RoleSystem    Role = "system"
)

// ToolResultStatus is the outcome of a dispatched tool call.
type ToolResultStatus string

const (
	ToolResultOK    ToolResultStatus = "ok"
	ToolResultError ToolResultStatus = "error"
)

// ToolCall is a single tool invocation requested by an Assistant message.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Message is the single record type threaded through the message log.
// Fields not relevant to a given Role are left zero; Role is authoritative.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Assistant-only.
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
	Reasoning string     `json:"reasoning,omitempty"`

	// ToolResult-only.
	ToolCallID string           `json:"toolCallId,omitempty"`
	ToolName   string           `json:"toolName,omitempty"`
	Status     ToolResultStatus `json:"status,omitempty"`
}

// NewHumanMessage builds a Human message with a fresh id.
func NewHumanMessage(content string) Message {
	return Message{ID: uuid.New().String(), Role: RoleHuman, Content: content}
}

// NewSystemMessage builds a System message with a fresh id.
func NewSystemMessage(content string) Message {
	return Message{ID: uuid.New().String(), Role: RoleSystem, Content: content}
}

// NewAssistantMessage builds an Assistant message, optionally carrying
// tool calls and reasoning text.
func NewAssistantMessage(content string, toolCalls []ToolCall, reasoning string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
		Reasoning: reasoning,
	}
}

// NewToolResultMessage builds a ToolResult message answering toolCallID.
func NewToolResultMessage(toolCallID, toolName, content string, status ToolResultStatus) Message {
	return Message{
		ID:         uuid.New().String(),
		Role:       RoleToolResult,
		Content:    content,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Status:     status,
	}
}

// HasToolCalls reports whether an Assistant message carries at least one
// pending tool call.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// RemoveMessage is a tombstone: when appended through the message reducer
// it deletes any existing message sharing its ID and never itself persists.
type RemoveMessage struct {
	ID string
}

// Delta is either a Message to append or a RemoveMessage tombstone.
// The message reducer accepts a mixed slice of these.
type Delta interface {
	isMessageDelta()
}

func (Message) isMessageDelta()       {}
func (RemoveMessage) isMessageDelta() {}
