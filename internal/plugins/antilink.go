package plugins

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/anthropics/feishu-guard/internal/biz/domain"
	"github.com/anthropics/feishu-guard/internal/biz/repo"
	"github.com/anthropics/feishu-guard/internal/biz/usecase"
)

const (
	antilinkName = "antilink"
	linkWarnAt   = 5
	linkRemoveAt = 10
)

var genericLinkRe = regexp.MustCompile(`(?i)(https?://|www\.|ftp://|t\.me/)\S+`)

// defaultSafeDomains never count as violations.
var defaultSafeDomains = []string{
	"youtube.com", "youtu.be", "google.com", "wikipedia.org",
	"github.com", "feishu.cn", "larksuite.com",
}

// Antilink deletes messages carrying group-invite links or non-allow-listed
// URLs. It keeps no state of its own beyond the daily violation counter
// stored on the user record.
type Antilink struct {
	users  repo.UserRepo
	modlog repo.ModLogRepo

	inviteRe    *regexp.Regexp
	safeDomains []string
}

// NewAntilink creates the link filter. inviteDomain is the platform's own
// group-invite host, always blocked regardless of the allow-list.
func NewAntilink(users repo.UserRepo, modlog repo.ModLogRepo, inviteDomain string, safeDomains []string) *Antilink {
	if len(safeDomains) == 0 {
		safeDomains = defaultSafeDomains
	}
	return &Antilink{
		users:       users,
		modlog:      modlog,
		inviteRe:    regexp.MustCompile(`(?i)` + regexp.QuoteMeta(inviteDomain) + `/[A-Za-z0-9_-]{5,}`),
		safeDomains: safeDomains,
	}
}

// Descriptor returns the plugin descriptor.
func (a *Antilink) Descriptor() *usecase.Descriptor {
	return &usecase.Descriptor{
		Name:     antilinkName,
		Version:  "6.0.0",
		Priority: 2,
		Events: map[string]usecase.EventHandler{
			usecase.EventMessage: a.onMessage,
		},
	}
}

func (a *Antilink) onMessage(ctx context.Context, c *usecase.Context) error {
	ev := c.Event
	if !ev.IsGroup || ev.Body == "" || ev.FromSelf {
		return nil
	}

	text := strings.ToLower(strings.TrimSpace(ev.Body))
	if !a.matches(text) {
		return nil
	}

	// Always delete first, whatever the violation count says.
	c.Delete(ctx)

	count := a.users.BumpDailyCounter(ev.SenderID, antilinkName)
	c.Logger().Warn("link removed", "chat", ev.ChatID, "sender", ev.SenderID, "violations", count)
	a.record(ctx, ev, "delete", fmt.Sprintf("violation #%d", count))

	switch {
	case count == linkWarnAt:
		c.ReplyMention(ctx,
			fmt.Sprintf("You have posted %d links today. At %d you will be removed from the group.", linkWarnAt, linkRemoveAt),
			ev.SenderID)
		a.record(ctx, ev, "warn", "daily link limit approaching")

	case count >= linkRemoveAt:
		c.ReplyMention(ctx, "Daily link limit reached. Removing you from the group.", ev.SenderID)
		if err := c.RemoveSender(ctx); err != nil {
			c.Reply(ctx, "Could not remove the sender. Check that I have group admin permission.")
		}
		a.record(ctx, ev, "remove", "daily link limit reached")
	}
	return nil
}

// matches reports whether the text carries an invite link or a generic URL
// outside the allow-list.
func (a *Antilink) matches(text string) bool {
	if a.inviteRe.MatchString(text) {
		return true
	}
	if !genericLinkRe.MatchString(text) {
		return false
	}
	for _, host := range a.safeDomains {
		if strings.Contains(text, host) {
			return false
		}
	}
	return true
}

func (a *Antilink) record(ctx context.Context, ev *domain.Event, action, reason string) {
	if a.modlog == nil {
		return
	}
	_ = a.modlog.Record(ctx, &repo.ModAction{
		Pipeline: antilinkName,
		ChatID:   ev.ChatID,
		SenderID: ev.SenderID,
		Action:   action,
		Reason:   reason,
	})
}
