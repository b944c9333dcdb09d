package models

// Message is a single prompt entry sent to a bot. The first message with RoleSystem, if any, carries the
// documentation instructions; the user message carries the source code to document.
type Message struct {
	Role    Role
	Content string
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleSystem carries the documentation instructions.
	RoleSystem Role = "system"
	// RoleUser carries the submitted source code.
	RoleUser Role = "user"
	// RoleAssistant is the bot's answer.
	RoleAssistant Role = "assistant"
)
