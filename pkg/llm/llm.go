package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethpandaops/llmsentinel/pkg/config"
	"github.com/sirupsen/logrus"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is a single chat message.
type Message struct {
	Role    Role
	Content string
}

// System returns a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User returns a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Client sends a chat conversation to a model and returns the text of its
// reply.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, messages []Message) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

// New builds the client for the configured provider.
func New(log logrus.FieldLogger, cfg *config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return NewOpenAI(log, cfg), nil
	case config.ProviderAnthropic:
		return NewAnthropic(log, cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// splitSystem separates system messages from the rest of the conversation.
// Multiple system messages are joined with a blank line.
func splitSystem(messages []Message) (string, []Message) {
	var (
		system []string
		rest   = make([]Message, 0, len(messages))
	)

	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)

			continue
		}

		rest = append(rest, m)
	}

	return strings.Join(system, "\n\n"), rest
}

// withTrailingSlash makes relative request paths resolve below the base path.
func withTrailingSlash(u string) string {
	if u == "" || strings.HasSuffix(u, "/") {
		return u
	}

	return u + "/"
}
