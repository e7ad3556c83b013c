package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/anthropics/feishu-guard/internal/biz/domain"
	"github.com/anthropics/feishu-guard/internal/biz/repo"
	"github.com/anthropics/feishu-guard/internal/biz/usecase"
	"github.com/anthropics/feishu-guard/internal/conf"
)

const (
	profanityName = "profanity"
	muteAt        = 10
	muteDuration  = time.Hour
)

// leetMap undoes the common digit-for-letter substitutions before matching.
var leetMap = map[rune]rune{
	'4': 'a',
	'3': 'e',
	'1': 'i',
	'0': 'o',
	'5': 's',
	'7': 't',
}

// Profanity watches group messages for configured words, deletes matches,
// and mutes repeat offenders. Mutes are process-wide: a muted user's
// messages are deleted in every conversation until the mute expires or the
// bypass phrase lifts it. The violation count lives on the durable mute
// record, so an offender's standing survives a restart.
type Profanity struct {
	cfg          conf.WordsConfig
	mutes        repo.MuteRepo
	modlog       repo.ModLogRepo
	bypassPhrase string
	now          func() time.Time

	mu       sync.Mutex
	patterns []*regexp.Regexp
}

// NewProfanity creates the filter. Word patterns are compiled by the Load
// hook so a bad word list fails at registration, not mid-dispatch.
func NewProfanity(cfg conf.WordsConfig, mutes repo.MuteRepo, modlog repo.ModLogRepo, bypassPhrase string) *Profanity {
	return &Profanity{
		cfg:          cfg,
		mutes:        mutes,
		modlog:       modlog,
		bypassPhrase: bypassPhrase,
		now:          time.Now,
	}
}

// SetClock injects a time source for tests.
func (p *Profanity) SetClock(now func() time.Time) { p.now = now }

// Descriptor returns the plugin descriptor. The plugin is a command plugin
// so "unmute" routes to it, and it also watches every message event.
func (p *Profanity) Descriptor() *usecase.Descriptor {
	return &usecase.Descriptor{
		Name:     profanityName,
		Version:  "3.1.0",
		Type:     usecase.PluginTypeCommand,
		Priority: 3,
		Commands: []string{"unmute"},
		Run:      p.runUnmute,
		Load:     p.load,
		Events: map[string]usecase.EventHandler{
			usecase.EventMessage: p.onMessage,
		},
	}
}

func (p *Profanity) load(logger *slog.Logger) error {
	patterns := make([]*regexp.Regexp, 0, len(p.cfg.Words))
	for _, w := range p.cfg.Words {
		w = normalizeText(w)
		if w == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(w) + `\b`)
		if err != nil {
			return fmt.Errorf("compile word pattern %q: %w", w, err)
		}
		patterns = append(patterns, re)
	}
	p.mu.Lock()
	p.patterns = patterns
	p.mu.Unlock()
	logger.Info("word list loaded", "words", len(patterns), "enabled", p.cfg.Enabled)
	return nil
}

func (p *Profanity) onMessage(ctx context.Context, c *usecase.Context) error {
	ev := c.Event
	if ev.Body == "" || ev.FromSelf {
		return nil
	}

	// Active mute: delete everything except the bypass phrase.
	if mute, ok := p.mutes.Get(ev.SenderID); ok && mute.Active {
		if p.now().After(mute.ExpiresAt) {
			p.mutes.Delete(ev.SenderID)
		} else if p.bypassPhrase != "" && ev.Body == p.bypassPhrase {
			// Lift the mute but keep the violation count on record.
			mute.Active = false
			mute.ExpiresAt = time.Time{}
			p.mutes.Put(ev.SenderID, mute)
			c.ReplyMention(ctx, "Your mute has been lifted.", ev.SenderID)
			p.record(ctx, ev, "unmute", "bypass phrase")
			return nil
		} else {
			c.Delete(ctx)
			return nil
		}
	}

	if !p.cfg.Enabled || !ev.IsGroup || (c.User != nil && c.User.IsOwner()) {
		return nil
	}
	if !p.matches(ev.Body) {
		return nil
	}

	c.Delete(ctx)

	// The count rides the durable mute record; each violation is persisted
	// so the tally survives a restart.
	p.mu.Lock()
	mute, _ := p.mutes.Get(ev.SenderID)
	mute.Violations++
	count := mute.Violations
	if count >= muteAt {
		mute.Active = true
		mute.ExpiresAt = p.now().Add(muteDuration)
		mute.Violations = 0
	}
	err := p.mutes.Put(ev.SenderID, mute)
	p.mu.Unlock()
	if err != nil {
		c.Logger().Error("persist mute record failed", "sender", ev.SenderID, "error", err)
	}

	c.Logger().Warn("profanity removed", "chat", ev.ChatID, "sender", ev.SenderID, "count", count)
	p.record(ctx, ev, "delete", fmt.Sprintf("violation #%d", count))

	if count >= muteAt {
		c.ReplyMention(ctx, "You have been muted for one hour. Messages you send will be deleted.", ev.SenderID)
		p.record(ctx, ev, "mute", "repeated profanity")
		return nil
	}

	// Warn on every other violation so the channel isn't flooded with
	// bot notices.
	if count%2 == 0 {
		c.ReplyMention(ctx, p.warning(count), ev.SenderID)
		p.record(ctx, ev, "warn", fmt.Sprintf("violation #%d", count))
	}
	return nil
}

// runUnmute handles the owner-only unmute command: "unmute <user-id>".
func (p *Profanity) runUnmute(ctx context.Context, c *usecase.Context) error {
	if c.User == nil || !c.User.IsOwner() {
		return c.Reply(ctx, "Only an owner can use this command.")
	}
	if c.Command == nil || len(c.Command.Args) == 0 {
		return c.Reply(ctx, "Usage: unmute <user-id>")
	}

	target := c.Command.Args[0]
	if _, ok := p.mutes.Get(target); !ok {
		return c.Reply(ctx, "That user is not muted.")
	}
	if err := p.mutes.Delete(target); err != nil {
		return fmt.Errorf("delete mute: %w", err)
	}
	p.record(ctx, c.Event, "unmute", "owner command")
	return c.Reply(ctx, "Mute lifted.")
}

func (p *Profanity) matches(body string) bool {
	text := normalizeText(body)
	p.mu.Lock()
	patterns := p.patterns
	p.mu.Unlock()
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (p *Profanity) warning(count int) string {
	if len(p.cfg.Warnings) == 0 {
		return "Watch your language."
	}
	msg := p.cfg.Warnings[(count/2-1)%len(p.cfg.Warnings)]
	return fmt.Sprintf("%s (%d/%d)", msg, count, muteAt)
}

func (p *Profanity) record(ctx context.Context, ev *domain.Event, action, reason string) {
	if p.modlog == nil {
		return
	}
	_ = p.modlog.Record(ctx, &repo.ModAction{
		Pipeline: profanityName,
		ChatID:   ev.ChatID,
		SenderID: ev.SenderID,
		Action:   action,
		Reason:   reason,
	})
}

// normalizeText lowercases, strips accents, undoes leetspeak digits and
// drops everything that is not a letter or space, so "f[u]ck" and "fück"
// match the same pattern as the plain word.
func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = norm.NFD.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.In(r, unicode.Mn, unicode.Me) {
			continue
		}
		if sub, ok := leetMap[r]; ok {
			r = sub
		}
		if unicode.IsLetter(r) || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
