package core

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation's dialogue history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
