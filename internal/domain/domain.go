// Package domain contains core domain types for the deskagent service.
package domain

import (
	"time"
)

// User represents a support customer known to the system.
type User struct {
	ID        string            `json:"user_id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Profile   map[string]string `json:"profile,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Role identifies the author of a conversation entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry in the context handed to a decision source.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Event is one entry in a session's append-only event log.
// Role "user" and "assistant" events carry Text; role "tool" events
// carry the tool name, arguments and result instead.
type Event struct {
	Role   Role           `json:"role"`
	Text   string         `json:"text,omitempty"`
	Tool   string         `json:"tool,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Result map[string]any `json:"result,omitempty"`
}

// MemoryEntry is a durable per-user fact.
type MemoryEntry struct {
	UserID    string    `json:"user_id"`
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketStatusOpen is the status every new ticket starts in. The core
// never transitions tickets to any other status.
const TicketStatusOpen = "open"

// Ticket is a support escalation record.
type Ticket struct {
	ID      string `json:"ticket_id"`
	UserID  string `json:"user_id"`
	Summary string `json:"summary"`
	Status  string `json:"status"`
}

// DecisionKind discriminates the two decision variants.
type DecisionKind string

const (
	// DecisionReply means the source produced a direct textual answer.
	DecisionReply DecisionKind = "reply"
	// DecisionToolCall means the source requested a tool invocation.
	DecisionToolCall DecisionKind = "tool_call"
)

// Decision is the outcome of one decision-source call: either a reply
// or a tool invocation request. Decisions are transient; only the
// session Event they give rise to is persisted.
type Decision struct {
	Kind DecisionKind   `json:"type"`
	Text string         `json:"text,omitempty"`
	Tool string         `json:"tool_name,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

// ReplyDecision builds a reply decision.
func ReplyDecision(text string) Decision {
	return Decision{Kind: DecisionReply, Text: text}
}

// ToolCallDecision builds a tool-call decision. A nil args map is
// normalized to an empty one so callers can inject arguments safely.
func ToolCallDecision(tool string, args map[string]any) Decision {
	if args == nil {
		args = map[string]any{}
	}
	return Decision{Kind: DecisionToolCall, Tool: tool, Args: args}
}
