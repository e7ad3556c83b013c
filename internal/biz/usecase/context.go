package usecase

import (
	"context"
	"log/slog"

	"github.com/anthropics/feishu-guard/internal/biz/domain"
	"github.com/anthropics/feishu-guard/internal/biz/repo"
)

// Context is the ephemeral, plugin-facing view of one inbound event. Its
// capability methods close over the event's chat and message key, so plugins
// never touch transport addressing. Every capability catches and logs
// delivery failures; the error is also returned for plugins that report it,
// but it never propagates as a panic or aborts the dispatch round.
type Context struct {
	Event    *domain.Event
	Command  *domain.Command // nil for generic events
	User     *domain.User
	Settings domain.Settings

	// Plugin is the descriptor of the plugin currently being invoked.
	Plugin *Descriptor

	logger   *slog.Logger
	messages repo.MessageRepo
	settings repo.SettingsRepo
	registry *Registry
}

// ContextBuilder turns canonical events into dispatch contexts. It performs
// no directory mutation; attribution is the dispatcher's job.
type ContextBuilder struct {
	logger   *slog.Logger
	messages repo.MessageRepo
	settings repo.SettingsRepo
	registry *Registry
}

// NewContextBuilder creates a context builder.
func NewContextBuilder(
	logger *slog.Logger,
	messages repo.MessageRepo,
	settings repo.SettingsRepo,
	registry *Registry,
) *ContextBuilder {
	return &ContextBuilder{
		logger:   logger.With("component", "context"),
		messages: messages,
		settings: settings,
		registry: registry,
	}
}

// Build constructs the dispatch context for one event against the given user
// record and the current settings snapshot.
func (b *ContextBuilder) Build(ev *domain.Event, user *domain.User) *Context {
	return &Context{
		Event:    ev,
		User:     user,
		Settings: b.settings.Snapshot(),
		logger:   b.logger,
		messages: b.messages,
		settings: b.settings,
		registry: b.registry,
	}
}

// Reply sends text to the event's chat.
func (c *Context) Reply(ctx context.Context, text string) error {
	if err := c.messages.SendText(ctx, c.Event.ChatID, text); err != nil {
		c.logger.Error("reply failed", "chat", c.Event.ChatID, "err", err)
		return err
	}
	return nil
}

// ReplyMention sends text to the event's chat, mentioning a user.
func (c *Context) ReplyMention(ctx context.Context, text, userID string) error {
	if err := c.messages.SendTextMention(ctx, c.Event.ChatID, text, userID); err != nil {
		c.logger.Error("mention reply failed", "chat", c.Event.ChatID, "err", err)
		return err
	}
	return nil
}

// SendTo sends text to an arbitrary chat, for plugins that target another
// conversation explicitly.
func (c *Context) SendTo(ctx context.Context, chatID, text string) error {
	if err := c.messages.SendText(ctx, chatID, text); err != nil {
		c.logger.Error("send failed", "chat", chatID, "err", err)
		return err
	}
	return nil
}

// React attaches an emoji reaction to the current message.
func (c *Context) React(ctx context.Context, emoji string) error {
	if err := c.messages.AddReaction(ctx, c.Event.MsgID, emoji); err != nil {
		c.logger.Error("react failed", "msg", c.Event.MsgID, "err", err)
		return err
	}
	return nil
}

// Delete withdraws the current message.
func (c *Context) Delete(ctx context.Context) error {
	return c.DeleteByID(ctx, c.Event.MsgID)
}

// DeleteByID withdraws an arbitrary message by key.
func (c *Context) DeleteByID(ctx context.Context, msgID string) error {
	if err := c.messages.DeleteMessage(ctx, msgID); err != nil {
		c.logger.Error("delete failed", "msg", msgID, "err", err)
		return err
	}
	return nil
}

// RemoveSender removes the event's sender from the chat.
func (c *Context) RemoveSender(ctx context.Context) error {
	if err := c.messages.RemoveChatMember(ctx, c.Event.ChatID, c.Event.SenderID); err != nil {
		c.logger.Error("member removal failed", "chat", c.Event.ChatID, "sender", c.Event.SenderID, "err", err)
		return err
	}
	return nil
}

// UpdateSetting mutates one settings key. Flushed writes are durable before
// this returns; the next Snapshot sees the new value either way.
func (c *Context) UpdateSetting(key, value string, flush bool) error {
	if err := c.settings.Set(key, value, flush); err != nil {
		c.logger.Error("setting update failed", "key", key, "err", err)
		return err
	}
	return nil
}

// Plugins returns the registry snapshot, for menu-style commands.
func (c *Context) Plugins() []*Descriptor {
	if c.registry == nil {
		return nil
	}
	return c.registry.List()
}

// Logger returns a logger scoped to the current plugin, when one is bound.
func (c *Context) Logger() *slog.Logger {
	if c.Plugin != nil {
		return c.logger.With("plugin", c.Plugin.Name)
	}
	return c.logger
}
