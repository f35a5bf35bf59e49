// Package llm defines Kensa's chat-completion boundary: a typed message
// sequence in, completion text out.
//
// The package deliberately knows nothing about intents, SQL, or memory.
// Callers assemble the full ordered message list (system prompt, context
// block, user question) and receive the raw completion text back.
package llm

import (
	"context"
	"errors"
)

// ErrRateLimit is returned by a Provider when the upstream API reports a
// rate-limiting condition (e.g. HTTP 429 Too Many Requests). The turn has
// failed; callers surface the error rather than degrading silently.
var ErrRateLimit = errors.New("llm: upstream rate limit exceeded")

// Role identifies the author of a chat message.
type Role string

const (
	// RoleSystem carries instructions that frame the model's behaviour.
	RoleSystem Role = "system"
	// RoleUser carries content attributed to the human (or caller).
	RoleUser Role = "user"
	// RoleAssistant carries content produced by the model in prior turns.
	RoleAssistant Role = "assistant"
)

// Message is a single entry in the ordered chat context.
type Message struct {
	Role    Role
	Content string
}

// System is shorthand for a system-role message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User is shorthand for a user-role message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Provider produces a chat completion for an ordered message sequence.
//
// Implementations must be safe for concurrent use. Production providers are
// non-deterministic; tests substitute scripted fakes.
type Provider interface {
	Invoke(ctx context.Context, messages []Message) (string, error)
}
