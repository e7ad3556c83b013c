package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

// Message is a received Feishu message, decoded from the event payload.
type Message struct {
	ChatID     string
	MsgID      string
	MsgType    string // text, image, post
	ChatType   string // p2p, group
	Content    string // extracted text content
	SenderID   string
	SenderType string // user, app
	ParentID   string // replied-to message, if any
	CreateTime int64  // milliseconds Unix timestamp
	Raw        *larkim.P2MessageReceiveV1
}

// MessageHandler receives decoded inbound messages.
type MessageHandler func(*Message)

// ConnectedHandler fires once the WebSocket connection is up.
type ConnectedHandler func()

// Client wraps the Lark SDK: WebSocket intake plus the outbound primitives
// the core's capability contract needs.
type Client struct {
	appID     string
	appSecret string
	logger    *slog.Logger

	larkCli *lark.Client
	wsCli   *larkws.Client

	onMessage   MessageHandler
	onConnected ConnectedHandler

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates an unstarted client.
func NewClient(logger *slog.Logger, appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		logger:    logger.With("component", "feishu"),
	}
}

// OnMessage sets the inbound message handler.
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// OnConnected sets the connection-established handler.
func (c *Client) OnConnected(handler ConnectedHandler) {
	c.onConnected = handler
}

// Start connects to Feishu via WebSocket and blocks, delivering events to
// the registered handler. Handlers must return quickly so the SDK can ACK;
// message processing is handed off to a goroutine.
func (c *Client) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.larkCli = lark.NewClient(c.appID, c.appSecret)

	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelWarn),
	)

	c.logger.Info("starting websocket connection")
	if c.onConnected != nil {
		go c.onConnected()
	}
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects the client.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	rawMsg := event.Event.Message
	if rawMsg == nil || rawMsg.MessageId == nil || rawMsg.ChatId == nil {
		return
	}

	msg := &Message{
		ChatID:  *rawMsg.ChatId,
		MsgID:   *rawMsg.MessageId,
		MsgType: deref(rawMsg.MessageType),
		Raw:     event,
	}
	if rawMsg.ChatType != nil {
		msg.ChatType = *rawMsg.ChatType
	}
	if rawMsg.ParentId != nil {
		msg.ParentID = *rawMsg.ParentId
	}
	if rawMsg.CreateTime != nil {
		if ts, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}
	}
	if sender := event.Event.Sender; sender != nil {
		if sender.SenderId != nil && sender.SenderId.OpenId != nil {
			msg.SenderID = *sender.SenderId.OpenId
		}
		if sender.SenderType != nil {
			msg.SenderType = *sender.SenderType
		}
	}

	switch msg.MsgType {
	case "text":
		msg.Content = parseTextContent(deref(rawMsg.Content))
	case "post":
		msg.Content = parsePostContent(deref(rawMsg.Content))
	default:
		// Non-text payloads pass through with an empty body; the core
		// still counts the interaction.
	}

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// SendText sends a plain text message to a chat.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	content, _ := json.Marshal(map[string]string{"text": text})

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}
	return nil
}

// SendTextMention sends text prefixed with an @ mention of the given user.
func (c *Client) SendTextMention(ctx context.Context, chatID, text, userID string) error {
	mention := fmt.Sprintf(`<at user_id="%s"></at> %s`, userID, text)
	content, _ := json.Marshal(map[string]string{"text": mention})

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send mention failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send mention error: %s", resp.Msg)
	}
	return nil
}

// SendImage sends an already-uploaded image by key.
func (c *Client) SendImage(ctx context.Context, chatID, imageKey string) error {
	content, _ := json.Marshal(map[string]string{"image_key": imageKey})

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeImage).
			Content(string(content)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send image failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send image error: %s", resp.Msg)
	}
	return nil
}

// AddReaction attaches an emoji reaction to a message.
func (c *Client) AddReaction(ctx context.Context, msgID, emojiType string) error {
	req := larkim.NewCreateMessageReactionReqBuilder().
		MessageId(msgID).
		Body(larkim.NewCreateMessageReactionReqBodyBuilder().
			ReactionType(larkim.NewEmojiBuilder().EmojiType(emojiType).Build()).
			Build()).
		Build()

	resp, err := c.larkCli.Im.MessageReaction.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("add reaction failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("add reaction error: %s", resp.Msg)
	}
	return nil
}

// DeleteMessage withdraws a message the bot can act on.
func (c *Client) DeleteMessage(ctx context.Context, msgID string) error {
	req := larkim.NewDeleteMessageReqBuilder().
		MessageId(msgID).
		Build()

	resp, err := c.larkCli.Im.Message.Delete(ctx, req)
	if err != nil {
		return fmt.Errorf("delete message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("delete message error: %s", resp.Msg)
	}
	return nil
}

// RemoveChatMember removes a user from a group chat. Fails when the bot
// lacks group-management permission.
func (c *Client) RemoveChatMember(ctx context.Context, chatID, userID string) error {
	req := larkim.NewDeleteChatMembersReqBuilder().
		ChatId(chatID).
		MemberIdType("open_id").
		Body(larkim.NewDeleteChatMembersReqBodyBuilder().
			IdList([]string{userID}).
			Build()).
		Build()

	resp, err := c.larkCli.Im.ChatMembers.Delete(ctx, req)
	if err != nil {
		return fmt.Errorf("remove member failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("remove member error: %s", resp.Msg)
	}
	return nil
}

func parseTextContent(raw string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return raw
	}
	return parsed.Text
}

func parsePostContent(raw string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag  string `json:"tag"`
			Text string `json:"text,omitempty"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return raw
	}
	out := parsed.Title
	for _, line := range parsed.Content {
		var lineText string
		for _, elem := range line {
			if elem.Tag == "text" {
				lineText += elem.Text
			}
		}
		if lineText != "" {
			if out != "" {
				out += "\n"
			}
			out += lineText
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
