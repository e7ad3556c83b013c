package plugins

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/anthropics/feishu-guard/internal/biz/repo"
	"github.com/anthropics/feishu-guard/internal/biz/usecase"
)

// Core bundles the small built-in commands: ping, stats, menu, del, mode
// and modlog. They share a start time and the moderation log handle.
type Core struct {
	modlog  repo.ModLogRepo
	started time.Time
}

// NewCore creates the built-in command set.
func NewCore(modlog repo.ModLogRepo) *Core {
	return &Core{
		modlog:  modlog,
		started: time.Now(),
	}
}

// Descriptors returns one descriptor per built-in command.
func (c *Core) Descriptors() []*usecase.Descriptor {
	return []*usecase.Descriptor{
		{
			Name:     "ping",
			Version:  "1.2.0",
			Type:     usecase.PluginTypeCommand,
			Commands: []string{"ping"},
			Run:      c.runPing,
		},
		{
			Name:     "stats",
			Version:  "1.1.0",
			Type:     usecase.PluginTypeCommand,
			Commands: []string{"stats", "status"},
			Run:      c.runStats,
		},
		{
			Name:     "menu",
			Version:  "2.0.0",
			Type:     usecase.PluginTypeCommand,
			Commands: []string{"menu", "help"},
			Run:      c.runMenu,
		},
		{
			Name:     "del",
			Version:  "1.0.0",
			Type:     usecase.PluginTypeCommand,
			Commands: []string{"del", "delete"},
			Run:      c.runDel,
		},
		{
			Name:     "mode",
			Version:  "1.3.0",
			Type:     usecase.PluginTypeCommand,
			Commands: []string{"mode", "set"},
			Run:      c.runMode,
		},
		{
			Name:     "modlog",
			Version:  "1.0.0",
			Type:     usecase.PluginTypeCommand,
			Commands: []string{"modlog"},
			Run:      c.runModlog,
		},
	}
}

func (c *Core) runPing(ctx context.Context, uc *usecase.Context) error {
	reply := "Pong!"
	if !uc.Event.CreateTime.IsZero() {
		reply = fmt.Sprintf("Pong! %s", time.Since(uc.Event.CreateTime).Round(time.Millisecond))
	}
	return uc.Reply(ctx, reply)
}

func (c *Core) runStats(ctx context.Context, uc *usecase.Context) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var b strings.Builder
	fmt.Fprintf(&b, "Uptime: %s\n", time.Since(c.started).Round(time.Second))
	fmt.Fprintf(&b, "Go: %s, goroutines: %d\n", runtime.Version(), runtime.NumGoroutine())
	fmt.Fprintf(&b, "Heap: %.1f MiB\n", float64(mem.HeapAlloc)/(1<<20))
	fmt.Fprintf(&b, "Plugins: %d", len(uc.Plugins()))
	return uc.Reply(ctx, b.String())
}

func (c *Core) runMenu(ctx context.Context, uc *usecase.Context) error {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, d := range uc.Plugins() {
		if d.Type != usecase.PluginTypeCommand || !d.Enabled || len(d.Commands) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %s (v%s)\n", strings.Join(d.Commands, ", "), d.Version)
	}
	return uc.Reply(ctx, strings.TrimRight(b.String(), "\n"))
}

func (c *Core) runDel(ctx context.Context, uc *usecase.Context) error {
	if uc.User == nil || !uc.User.IsOwner() {
		return uc.Reply(ctx, "Only an owner can use this command.")
	}
	if uc.Event.ReplyToID == "" {
		return uc.Reply(ctx, "Reply to the message you want deleted.")
	}
	if err := uc.DeleteByID(ctx, uc.Event.ReplyToID); err != nil {
		return uc.Reply(ctx, "Could not delete that message.")
	}
	return nil
}

func (c *Core) runMode(ctx context.Context, uc *usecase.Context) error {
	if uc.User == nil || !uc.User.IsOwner() {
		return uc.Reply(ctx, "Only an owner can use this command.")
	}
	args := uc.Command.Args
	if len(args) == 0 {
		s := uc.Settings
		return uc.Reply(ctx, fmt.Sprintf("groupMode=%t privateMode=%t selfNotify=%t",
			s.GroupMode, s.PrivateMode, s.SelfNotify))
	}
	if len(args) < 2 {
		return uc.Reply(ctx, "Usage: mode <key> <value>")
	}

	if err := uc.UpdateSetting(args[0], args[1], true); err != nil {
		return uc.Reply(ctx, "Could not update that setting.")
	}
	return uc.Reply(ctx, fmt.Sprintf("%s set to %s.", args[0], args[1]))
}

func (c *Core) runModlog(ctx context.Context, uc *usecase.Context) error {
	if uc.User == nil || !uc.User.IsOwner() {
		return uc.Reply(ctx, "Only an owner can use this command.")
	}
	if c.modlog == nil {
		return uc.Reply(ctx, "Moderation log is not configured.")
	}

	actions, err := c.modlog.Recent(ctx, 10)
	if err != nil {
		return fmt.Errorf("load moderation log: %w", err)
	}
	if len(actions) == 0 {
		return uc.Reply(ctx, "No moderation actions recorded.")
	}

	var b strings.Builder
	b.WriteString("Recent moderation actions:\n")
	for _, a := range actions {
		fmt.Fprintf(&b, "  %s %s %s sender=%s %s\n",
			a.At.Format("01-02 15:04"), a.Pipeline, a.Action, a.SenderID, a.Reason)
	}
	return uc.Reply(ctx, strings.TrimRight(b.String(), "\n"))
}
