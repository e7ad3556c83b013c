package data

import (
	"context"

	"github.com/anthropics/feishu-guard/feishu"
	"github.com/anthropics/feishu-guard/internal/biz/repo"
)

// feishuRepo implements the outbound message capabilities over the Feishu
// client.
type feishuRepo struct {
	client *feishu.Client
}

// NewFeishuRepo wraps a Feishu client as a MessageRepo.
func NewFeishuRepo(client *feishu.Client) repo.MessageRepo {
	return &feishuRepo{client: client}
}

func (r *feishuRepo) SendText(ctx context.Context, chatID, text string) error {
	return r.client.SendText(ctx, chatID, text)
}

func (r *feishuRepo) SendTextMention(ctx context.Context, chatID, text, userID string) error {
	return r.client.SendTextMention(ctx, chatID, text, userID)
}

func (r *feishuRepo) SendImage(ctx context.Context, chatID, imageKey string) error {
	return r.client.SendImage(ctx, chatID, imageKey)
}

func (r *feishuRepo) AddReaction(ctx context.Context, msgID, emoji string) error {
	return r.client.AddReaction(ctx, msgID, emoji)
}

func (r *feishuRepo) DeleteMessage(ctx context.Context, msgID string) error {
	return r.client.DeleteMessage(ctx, msgID)
}

func (r *feishuRepo) RemoveChatMember(ctx context.Context, chatID, userID string) error {
	return r.client.RemoveChatMember(ctx, chatID, userID)
}
