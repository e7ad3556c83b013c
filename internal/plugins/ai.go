package plugins

import (
	"context"
	"strings"

	"github.com/anthropics/feishu-guard/internal/biz/usecase"
	"github.com/anthropics/feishu-guard/llm"
)

const aiSystemPrompt = "You are a helpful assistant living inside a group chat. " +
	"Answer concisely in the language of the question."

// AI answers free-form questions through the chat-completion client. The
// plugin registers even without credentials so the menu stays honest; it
// just reports the missing configuration.
type AI struct {
	client *llm.Client
}

// NewAI creates the assistant command. client may be nil when no API key is
// configured.
func NewAI(client *llm.Client) *AI {
	return &AI{client: client}
}

// Descriptor returns the plugin descriptor.
func (a *AI) Descriptor() *usecase.Descriptor {
	return &usecase.Descriptor{
		Name:     "ai",
		Version:  "1.4.0",
		Type:     usecase.PluginTypeCommand,
		Commands: []string{"ai", "ask"},
		Run:      a.run,
	}
}

func (a *AI) run(ctx context.Context, c *usecase.Context) error {
	if a.client == nil {
		return c.Reply(ctx, "The assistant is not configured. Set LLM_API_KEY to enable it.")
	}

	question := strings.TrimSpace(strings.Join(c.Command.Args, " "))
	if question == "" {
		return c.Reply(ctx, "Usage: ai <question>")
	}

	answer, err := a.client.Chat(ctx, aiSystemPrompt, question)
	if err != nil {
		c.Logger().Error("assistant call failed", "err", err)
		return c.Reply(ctx, "The assistant is unavailable right now.")
	}
	return c.Reply(ctx, answer)
}
