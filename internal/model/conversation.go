package model

import "time"

// ConversationRole identifies who authored a ConversationTurn.
type ConversationRole string

const (
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
	RoleTool      ConversationRole = "tool"
)

// ToolCall is one tool invocation requested by the assistant.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// ConversationTurn is one message within an agent chat session. Turns
// within a session are totally ordered by CreatedAt; both successful and
// failed LLM attempts are persisted so context is never torn.
type ConversationTurn struct {
	SessionID     string
	Role          ConversationRole
	Content       string
	ToolCalls     []ToolCall
	ToolCallID    string // set on RoleTool turns, references the ToolCall.ID
	ReasoningBlob string // opaque provider extension, stored verbatim; not resent to the model on later turns
	Failed        bool
	CreatedAt     time.Time
}
