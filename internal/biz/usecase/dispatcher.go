package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/anthropics/feishu-guard/internal/biz/domain"
	"github.com/anthropics/feishu-guard/internal/biz/repo"
)

const (
	// EventMessage is the event name delivered for every inbound message.
	EventMessage = "message"

	defaultCooldown    = 2 * time.Second
	cooldownLedgerSize = 4096
)

// Dispatcher is the control-flow core: it attributes an event to a user
// record, classifies it, applies admission policy, and routes it through the
// plugin set in priority order with per-plugin failure isolation.
type Dispatcher struct {
	logger   *slog.Logger
	users    repo.UserRepo
	registry *Registry
	builder  *ContextBuilder

	prefixes string
	window   time.Duration
	// cooldown maps sender:command to the last invocation time. The LRU
	// bound plus TTL expiry keep the ledger from growing without limit
	// under sustained distinct-sender load.
	cooldown *expirable.LRU[string, time.Time]

	now func() time.Time
}

// DispatcherOption tweaks dispatcher construction.
type DispatcherOption func(*Dispatcher)

// WithCommandPrefixes overrides the command prefix character set.
func WithCommandPrefixes(prefixes string) DispatcherOption {
	return func(d *Dispatcher) {
		if prefixes != "" {
			d.prefixes = prefixes
		}
	}
}

// WithCooldownWindow overrides the per-(sender, command) refractory period.
func WithCooldownWindow(w time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if w > 0 {
			d.window = w
		}
	}
}

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher over the given stores.
func NewDispatcher(
	logger *slog.Logger,
	users repo.UserRepo,
	registry *Registry,
	builder *ContextBuilder,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		logger:   logger.With("component", "dispatcher"),
		users:    users,
		registry: registry,
		builder:  builder,
		prefixes: domain.DefaultCommandPrefixes,
		window:   defaultCooldown,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cooldown = expirable.NewLRU[string, time.Time](cooldownLedgerSize, nil, d.window)
	return d
}

// Dispatch processes one inbound event end to end. It never returns an
// error: every failure mode is logged and isolated here.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *domain.Event) {
	if ev == nil {
		return
	}

	// attributed
	user := d.users.Upsert(ev)
	c := d.builder.Build(ev, user)

	// classified
	if cmd, ok := domain.ParseCommand(ev.Body, d.prefixes); ok {
		c.Command = &cmd
		d.logger.Info("command received",
			"command", cmd.Name, "sender", ev.SenderID, "role", user.Role, "group", ev.IsGroup)

		if d.admit(c, &cmd) {
			d.routeCommand(ctx, c, &cmd)
		}
	}

	// Event-subscribed plugins run for every event, command or not.
	d.routeEvent(ctx, c, EventMessage)
}

// admit applies global admission policy to a command. Owners bypass it
// entirely. Rejections are silent by design: replying to throttled commands
// would just add cooldown-spam noise.
func (d *Dispatcher) admit(c *Context, cmd *domain.Command) bool {
	if c.User.IsOwner() {
		return true
	}
	if c.Event.IsGroup && !c.Settings.GroupMode {
		return false
	}
	if !c.Event.IsGroup && !c.Settings.PrivateMode {
		return false
	}

	key := fmt.Sprintf("%s:%s", c.Event.SenderID, cmd.Name)
	now := d.now()
	if last, ok := d.cooldown.Get(key); ok && now.Sub(last) < d.window {
		d.logger.Debug("command throttled", "command", cmd.Name, "sender", c.Event.SenderID)
		return false
	}
	d.cooldown.Add(key, now)
	return true
}

// routeCommand invokes every enabled command plugin whose trigger set
// contains the command name, in priority order.
func (d *Dispatcher) routeCommand(ctx context.Context, c *Context, cmd *domain.Command) {
	matched := 0
	for _, p := range d.registry.List() {
		if !p.Enabled || p.Type != PluginTypeCommand || p.Run == nil {
			continue
		}
		if !hasCommand(p, cmd.Name) {
			continue
		}
		matched++
		c.Plugin = p
		if err := p.Run(ctx, c); err != nil {
			d.logger.Error("plugin failed", "plugin", p.Name, "command", cmd.Name, "err", err)
			c.Reply(ctx, "Something went wrong running that command.")
		}
	}
	c.Plugin = nil

	if matched == 0 {
		d.logger.Debug("no plugin for command", "command", cmd.Name)
	}
}

// routeEvent invokes every enabled plugin's handler for the named event, in
// priority order, isolating failures per plugin.
func (d *Dispatcher) routeEvent(ctx context.Context, c *Context, event string) {
	for _, p := range d.registry.List() {
		if !p.Enabled || p.Events == nil {
			continue
		}
		h, ok := p.Events[event]
		if !ok {
			continue
		}
		c.Plugin = p
		if err := h(ctx, c); err != nil {
			d.logger.Error("event handler failed", "plugin", p.Name, "event", event, "err", err)
		}
	}
	c.Plugin = nil
}

func hasCommand(p *Descriptor, name string) bool {
	for _, c := range p.Commands {
		if c == name {
			return true
		}
	}
	return false
}
