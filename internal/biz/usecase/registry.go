package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// PluginType tags what a plugin contributes to routing.
type PluginType string

const (
	PluginTypeCommand PluginType = "command"
	PluginTypeUtility PluginType = "utility"
)

// EventHandler handles one named event with a bound dispatch context.
type EventHandler func(context.Context, *Context) error

// Descriptor declares a behavior unit. A descriptor may carry a command
// handler, a set of event handlers, or both; routing selects on Type and
// the trigger set.
type Descriptor struct {
	Name    string
	Version string
	Type    PluginType
	// Priority orders dispatch, lower first. Zero is not a valid priority:
	// Register treats it as "unspecified" and assigns the default. Plugins
	// that must run ahead of the default tier declare 1 and up explicitly.
	Priority int
	Enabled  bool

	// Commands are the trigger names served by Run.
	Commands []string
	Run      func(context.Context, *Context) error

	// Events maps event names to handlers invoked for every admitted event.
	Events map[string]EventHandler

	// Load runs once at registration time.
	Load func(logger *slog.Logger) error

	order int // registration order, breaks priority ties
}

// Registry holds the installed plugin set keyed by name.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	plugins map[string]*Descriptor
	nextOrd int
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:  logger.With("component", "registry"),
		plugins: make(map[string]*Descriptor),
	}
}

// Register stores a descriptor with defaults applied: an empty version
// becomes "1.0.0", an empty type becomes utility, and a zero priority gets
// the default tier of 10 (a descriptor cannot ask for priority 0; use 1 and
// up to run ahead of the default tier). Registration always enables the
// plugin, including re-registration of one disabled via SetEnabled. It
// returns false, without storing anything, when the descriptor has no name.
// Registering a name twice replaces the previous descriptor but keeps its
// order slot.
func (r *Registry) Register(d *Descriptor) bool {
	if d == nil || d.Name == "" {
		return false
	}
	if d.Version == "" {
		d.Version = "1.0.0"
	}
	if d.Type == "" {
		d.Type = PluginTypeUtility
	}
	if d.Priority == 0 {
		d.Priority = 10
	}
	d.Enabled = true

	r.mu.Lock()
	if prev, ok := r.plugins[d.Name]; ok {
		d.order = prev.order
	} else {
		d.order = r.nextOrd
		r.nextOrd++
	}
	r.plugins[d.Name] = d
	r.mu.Unlock()

	if d.Load != nil {
		if err := d.Load(r.logger.With("plugin", d.Name)); err != nil {
			r.logger.Error("plugin load hook failed", "plugin", d.Name, "err", err)
		}
	}

	r.logger.Debug("plugin registered", "plugin", d.Name, "version", d.Version, "priority", d.Priority)
	return true
}

// Get returns a descriptor by name, or nil.
func (r *Registry) Get(name string) *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plugins[name]
}

// SetEnabled flips a plugin's enabled flag. It reports whether the plugin
// exists.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.plugins[name]
	if ok {
		d.Enabled = enabled
	}
	return ok
}

// List returns the current snapshot ordered by priority ascending, ties
// broken by registration order.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	out := make([]*Descriptor, 0, len(r.plugins))
	for _, d := range r.plugins {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].order < out[j].order
	})
	return out
}
