package repo

import "context"

// MessageRepo is the outbound capability contract implemented by the
// transport adapter. Delivery failures are returned, never panicked; the
// context builder decides how they surface.
type MessageRepo interface {
	// SendText sends a plain text message to a chat.
	SendText(ctx context.Context, chatID, text string) error

	// SendTextMention sends text that names a user, so clients can render
	// an @ mention for them.
	SendTextMention(ctx context.Context, chatID, text, userID string) error

	// SendImage sends previously uploaded media to a chat.
	SendImage(ctx context.Context, chatID, imageKey string) error

	// AddReaction attaches an emoji reaction to a message.
	AddReaction(ctx context.Context, msgID, emoji string) error

	// DeleteMessage withdraws a message by its platform key.
	DeleteMessage(ctx context.Context, msgID string) error

	// RemoveChatMember removes a participant from a group chat.
	RemoveChatMember(ctx context.Context, chatID, userID string) error
}
