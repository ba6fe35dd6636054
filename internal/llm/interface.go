// Package llm defines the Client interface for chat model backends and the
// factory for selecting one at runtime. The default backend is a locally
// running Ollama instance spoken to directly over HTTP; hosted backends
// (OpenAI, Azure OpenAI, Google Gemini, AWS Bedrock) are wired through the
// eino ChatModel abstraction.
package llm

import (
	"context"
	"errors"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleSystem is an instruction turn that frames the model's behavior.
	RoleSystem Role = "system"
	// RoleUser is a turn authored by the end user.
	RoleUser Role = "user"
	// RoleAssistant is a turn authored by the model.
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a conversation, in chronological order within
// a slice of turns.
type Turn struct {
	// Role identifies who authored the turn.
	Role Role
	// Content is the turn's text.
	Content string
}

// ErrUnavailable indicates the backend could not be reached at all, as
// opposed to reachable-but-failing. Callers can match it with errors.Is to
// decide between a remediation hint and a generic failure message.
var ErrUnavailable = errors.New("llm: model backend is unavailable")

// Client is the interface all chat model backends implement.
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete generates a response to a single free-standing prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// Chat generates the next assistant turn for an ordered conversation.
	// Turns are sent oldest first.
	Chat(ctx context.Context, turns []Turn) (string, error)

	// CheckAvailability reports whether the backend is reachable. It should
	// return quickly; implementations use a short timeout independent of ctx's
	// deadline. A nil return means the backend answered.
	CheckAvailability(ctx context.Context) error

	// ListModels returns the model names the backend currently serves.
	// Listing is best-effort: failures yield an empty list, not an error.
	ListModels(ctx context.Context) ([]string, error)

	// Model returns the configured model name.
	Model() string
}
