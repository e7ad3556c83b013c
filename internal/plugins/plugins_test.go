package plugins

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anthropics/feishu-guard/internal/biz/domain"
	"github.com/anthropics/feishu-guard/internal/biz/repo"
	"github.com/anthropics/feishu-guard/internal/biz/usecase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder captures outbound operations for assertions.
type recorder struct {
	mu         sync.Mutex
	sent       []string
	deleted    []string
	removed    []string
	failRemove bool
}

func (r *recorder) SendText(_ context.Context, _, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

func (r *recorder) SendTextMention(ctx context.Context, chatID, text, _ string) error {
	return r.SendText(ctx, chatID, text)
}

func (r *recorder) SendImage(context.Context, string, string) error   { return nil }
func (r *recorder) AddReaction(context.Context, string, string) error { return nil }

func (r *recorder) DeleteMessage(_ context.Context, msgID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, msgID)
	return nil
}

func (r *recorder) RemoveChatMember(_ context.Context, _, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRemove {
		return errors.New("remove failed")
	}
	r.removed = append(r.removed, userID)
	return nil
}

func (r *recorder) sentContaining(substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if strings.Contains(s, substr) {
			n++
		}
	}
	return n
}

// memSettings serves a fixed settings snapshot.
type memSettings struct{ s domain.Settings }

func (m *memSettings) Snapshot() domain.Settings     { return m.s }
func (m *memSettings) Set(_, _ string, _ bool) error { return nil }
func (m *memSettings) Close() error                  { return nil }

// memUsers is a minimal in-memory user directory.
type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
	today string
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]*domain.User), today: "2025-06-01"}
}

func (m *memUsers) Get(id string) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *memUsers) Upsert(ev *domain.Event) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[ev.SenderID]
	if !ok {
		u = &domain.User{ID: ev.SenderID, Role: domain.RoleMember}
		m.users[ev.SenderID] = u
	}
	return u
}

func (m *memUsers) BumpDailyCounter(id, pipeline string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0
	}
	if u.Moderation == nil {
		u.Moderation = make(map[string]*domain.PipelineState)
	}
	st := u.Moderation[pipeline]
	if st == nil || st.Date != m.today {
		st = &domain.PipelineState{Date: m.today}
		u.Moderation[pipeline] = st
	}
	st.Count++
	return st.Count
}

func (m *memUsers) FlushNow() error { return nil }
func (m *memUsers) Close() error    { return nil }

// memMutes is an in-memory mute table.
type memMutes struct {
	mu    sync.Mutex
	mutes map[string]repo.Mute
}

func newMemMutes() *memMutes { return &memMutes{mutes: make(map[string]repo.Mute)} }

func (m *memMutes) Get(senderID string) (repo.Mute, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mute, ok := m.mutes[senderID]
	return mute, ok
}

func (m *memMutes) Put(senderID string, mute repo.Mute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutes[senderID] = mute
	return nil
}

func (m *memMutes) Delete(senderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mutes, senderID)
	return nil
}

func (m *memMutes) Close() error { return nil }

// memModLog records verdicts in memory.
type memModLog struct {
	mu      sync.Mutex
	actions []*repo.ModAction
}

func (m *memModLog) Record(_ context.Context, a *repo.ModAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, a)
	return nil
}

func (m *memModLog) Recent(_ context.Context, limit int) ([]*repo.ModAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*repo.ModAction, 0, len(m.actions))
	for i := len(m.actions) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.actions[i])
	}
	return out, nil
}

func (m *memModLog) Close() error { return nil }

func (m *memModLog) countAction(action string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.actions {
		if a.Action == action {
			n++
		}
	}
	return n
}

// pluginEnv wires fakes behind a real context builder.
type pluginEnv struct {
	t        *testing.T
	messages *recorder
	users    *memUsers
	mutes    *memMutes
	modlog   *memModLog
	registry *usecase.Registry
	builder  *usecase.ContextBuilder
}

func newPluginEnv(t *testing.T) *pluginEnv {
	t.Helper()
	env := &pluginEnv{
		t:        t,
		messages: &recorder{},
		users:    newMemUsers(),
		mutes:    newMemMutes(),
		modlog:   &memModLog{},
		registry: usecase.NewRegistry(testLogger()),
	}
	env.builder = usecase.NewContextBuilder(
		testLogger(), env.messages, &memSettings{s: domain.DefaultSettings()}, env.registry)
	return env
}

// deliver runs one event through a descriptor's message handler.
func (e *pluginEnv) deliver(d *usecase.Descriptor, ev *domain.Event) {
	e.t.Helper()
	user := e.users.Upsert(ev)
	c := e.builder.Build(ev, user)
	c.Plugin = d
	h, ok := d.Events[usecase.EventMessage]
	if !ok {
		e.t.Fatalf("descriptor has no message handler")
	}
	if err := h(context.Background(), c); err != nil {
		e.t.Fatalf("handler failed: %v", err)
	}
}

// invoke runs a command through a descriptor's Run handler.
func (e *pluginEnv) invoke(d *usecase.Descriptor, ev *domain.Event, cmd domain.Command) error {
	e.t.Helper()
	user := e.users.Upsert(ev)
	c := e.builder.Build(ev, user)
	c.Plugin = d
	c.Command = &cmd
	return d.Run(context.Background(), c)
}

func groupMsg(msgID, sender, body string) *domain.Event {
	return &domain.Event{
		MsgID:    msgID,
		ChatID:   "oc_group",
		SenderID: sender,
		IsGroup:  true,
		Body:     body,
	}
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
