package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/anthropics/feishu-guard/feishu"
	"github.com/anthropics/feishu-guard/internal/biz/domain"
	"github.com/anthropics/feishu-guard/internal/biz/repo"
	"github.com/anthropics/feishu-guard/internal/biz/usecase"
)

const (
	dedupTTL     = 5 * time.Minute
	dedupCleanup = 10 * time.Minute
)

// FeishuServer bridges the Feishu transport and the dispatcher: it decodes
// inbound messages into canonical events, drops platform redeliveries, and
// hands each event to its own dispatch goroutine.
type FeishuServer struct {
	logger     *slog.Logger
	client     *feishu.Client
	dispatcher *usecase.Dispatcher
	settings   repo.SettingsRepo
	messages   repo.MessageRepo
	selfID     string

	// Message deduplication cache: Feishu redelivers events when an ACK
	// is slow.
	seenMsgsMu  sync.Mutex
	seenMsgs    map[string]time.Time
	lastCleanup time.Time
}

// NewFeishuServer creates the intake server. selfID is the bot's own
// open_id; when set, only messages from that exact identity are treated as
// self-originated.
func NewFeishuServer(
	logger *slog.Logger,
	client *feishu.Client,
	dispatcher *usecase.Dispatcher,
	settings repo.SettingsRepo,
	messages repo.MessageRepo,
	selfID string,
) *FeishuServer {
	return &FeishuServer{
		logger:      logger.With("component", "server"),
		client:      client,
		dispatcher:  dispatcher,
		settings:    settings,
		messages:    messages,
		selfID:      selfID,
		seenMsgs:    make(map[string]time.Time),
		lastCleanup: time.Now(),
	}
}

// Start registers handlers and runs the transport loop (blocking).
func (s *FeishuServer) Start() error {
	s.client.OnMessage(s.handleMessage)
	s.client.OnConnected(s.notifySelf)
	return s.client.Start()
}

// Stop shuts the transport down.
func (s *FeishuServer) Stop() {
	s.client.Stop()
}

func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	if s.isDuplicate(msg.MsgID) {
		s.logger.Debug("duplicate message dropped", "msg", msg.MsgID)
		return
	}

	ev := &domain.Event{
		MsgID:      msg.MsgID,
		ChatID:     msg.ChatID,
		SenderID:   msg.SenderID,
		IsGroup:    msg.ChatType == "group",
		FromSelf:   s.isSelf(msg),
		Body:       msg.Content,
		MsgType:    msg.MsgType,
		ReplyToID:  msg.ParentID,
		CreateTime: time.UnixMilli(msg.CreateTime),
		Raw:        msg.Raw,
	}

	s.dispatcher.Dispatch(context.Background(), ev)
}

// isSelf reports whether a message was sent by this bot. Other apps in the
// chat also carry the "app" sender type, so the open_id comparison is
// authoritative when the bot's own identity is configured.
func (s *FeishuServer) isSelf(msg *feishu.Message) bool {
	if s.selfID != "" {
		return msg.SenderID == s.selfID
	}
	return msg.SenderType == "app"
}

// isDuplicate records a message ID and reports whether it was already seen
// inside the TTL window.
func (s *FeishuServer) isDuplicate(msgID string) bool {
	now := time.Now()

	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	if seen, ok := s.seenMsgs[msgID]; ok && now.Sub(seen) < dedupTTL {
		return true
	}
	s.seenMsgs[msgID] = now

	if now.Sub(s.lastCleanup) > dedupCleanup {
		for id, at := range s.seenMsgs {
			if now.Sub(at) > dedupTTL {
				delete(s.seenMsgs, id)
			}
		}
		s.lastCleanup = now
	}
	return false
}

// notifySelf sends the startup status summary when selfNotify is enabled
// and a notify chat is configured.
func (s *FeishuServer) notifySelf() {
	settings := s.settings.Snapshot()
	if !settings.SelfNotify || settings.NotifyChatID == "" {
		return
	}

	text := fmt.Sprintf(
		"Guard bot online.\nGroup mode: %s\nPrivate mode: %s",
		onOff(settings.GroupMode), onOff(settings.PrivateMode),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.messages.SendText(ctx, settings.NotifyChatID, text); err != nil {
		s.logger.Warn("startup notification failed", "err", err)
	}
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
