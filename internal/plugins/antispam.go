package plugins

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/anthropics/feishu-guard/internal/biz/domain"
	"github.com/anthropics/feishu-guard/internal/biz/repo"
	"github.com/anthropics/feishu-guard/internal/biz/usecase"
)

const (
	burstWindow   = 8 * time.Second
	burstWarnAt   = 5
	burstRemoveAt = 10
	burstStateCap = 2048
	antispamName  = "antispam"
)

// burstState tracks one (conversation, sender) spam streak.
type burstState struct {
	lastBody string
	count    int
	msgIDs   []string // buffered identifiers still eligible for deletion
	lastAt   time.Time
}

// Antispam is the burst detector: byte-identical messages repeated inside a
// short window escalate from batch cleanup to removal. Structurally
// dangerous payloads skip the counting entirely.
type Antispam struct {
	modlog repo.ModLogRepo
	now    func() time.Time

	mu    sync.Mutex
	state *lru.Cache[string, *burstState]
}

// NewAntispam creates the burst detector. The per-key state is bounded by an
// LRU so sustained distinct-sender load cannot grow it without limit.
func NewAntispam(modlog repo.ModLogRepo) *Antispam {
	state, _ := lru.New[string, *burstState](burstStateCap)
	return &Antispam{
		modlog: modlog,
		now:    time.Now,
		state:  state,
	}
}

// SetClock injects a time source for tests.
func (a *Antispam) SetClock(now func() time.Time) { a.now = now }

// Descriptor returns the plugin descriptor. Low priority so moderation runs
// before everything else.
func (a *Antispam) Descriptor() *usecase.Descriptor {
	return &usecase.Descriptor{
		Name:     antispamName,
		Version:  "2.2.0",
		Priority: 1,
		Events: map[string]usecase.EventHandler{
			usecase.EventMessage: a.onMessage,
		},
	}
}

func (a *Antispam) onMessage(ctx context.Context, c *usecase.Context) error {
	ev := c.Event
	if !ev.IsGroup || ev.Body == "" || ev.FromSelf {
		return nil
	}

	// Structural hazard check runs first and bypasses the streak logic.
	if domain.HazardousText(ev.Body) {
		c.Logger().Warn("hazardous payload detected", "chat", ev.ChatID, "sender", ev.SenderID)
		c.Delete(ctx)
		if err := c.RemoveSender(ctx); err != nil {
			c.Reply(ctx, "Could not remove the sender. Check that I have group admin permission.")
		}
		c.ReplyMention(ctx, "Dangerous message detected. Sender removed.", ev.SenderID)
		a.record(ctx, ev, "remove", "hazardous payload")
		return nil
	}

	key := ev.ChatID + ":" + ev.SenderID
	now := a.now()

	a.mu.Lock()
	st, ok := a.state.Get(key)
	if !ok || st.lastBody != ev.Body || now.Sub(st.lastAt) > burstWindow {
		st = &burstState{
			lastBody: ev.Body,
			count:    1,
			msgIDs:   []string{ev.MsgID},
			lastAt:   now,
		}
		a.state.Add(key, st)
		a.mu.Unlock()
		return nil
	}

	st.count++
	st.lastAt = now
	st.msgIDs = append(st.msgIDs, ev.MsgID)
	count := st.count
	var buffered []string
	switch {
	case count == burstWarnAt:
		buffered = st.msgIDs
		st.msgIDs = nil
	case count >= burstRemoveAt:
		a.state.Remove(key)
	}
	a.mu.Unlock()

	switch {
	case count < burstWarnAt:
		return nil

	case count == burstWarnAt:
		c.Logger().Warn("spam warning issued", "chat", ev.ChatID, "sender", ev.SenderID, "count", count)
		for _, id := range buffered {
			c.DeleteByID(ctx, id)
		}
		c.ReplyMention(ctx,
			fmt.Sprintf("Anti-spam warning: %d identical messages. Keep going and you will be removed.", count),
			ev.SenderID)
		a.record(ctx, ev, "warn", fmt.Sprintf("%d identical messages", count))

	case count < burstRemoveAt:
		c.Delete(ctx)

	default:
		c.Logger().Warn("removing spammer", "chat", ev.ChatID, "sender", ev.SenderID, "count", count)
		c.Delete(ctx)
		c.ReplyMention(ctx, "Spam limit exceeded. Removing sender.", ev.SenderID)
		if err := c.RemoveSender(ctx); err != nil {
			// Usually the bot lacks admin rights or the target owns the
			// group; report once, never retry.
			c.Reply(ctx, "Could not remove the sender. Check that I have group admin permission.")
		}
		a.record(ctx, ev, "remove", "spam limit exceeded")
	}
	return nil
}

func (a *Antispam) record(ctx context.Context, ev *domain.Event, action, reason string) {
	if a.modlog == nil {
		return
	}
	// Audit failures never block enforcement.
	_ = a.modlog.Record(ctx, &repo.ModAction{
		Pipeline: antispamName,
		ChatID:   ev.ChatID,
		SenderID: ev.SenderID,
		Action:   action,
		Reason:   reason,
	})
}
