package plugins

import (
	"context"
	"testing"

	"github.com/anthropics/feishu-guard/internal/biz/domain"
	"github.com/anthropics/feishu-guard/internal/biz/repo"
	"github.com/anthropics/feishu-guard/internal/biz/usecase"
)

func registerCore(t *testing.T, env *pluginEnv) *Core {
	t.Helper()
	core := NewCore(env.modlog)
	for _, d := range core.Descriptors() {
		if !env.registry.Register(d) {
			t.Fatalf("registration failed for %q", d.Name)
		}
	}
	return core
}

func coreDescriptor(t *testing.T, env *pluginEnv, name string) *usecase.Descriptor {
	t.Helper()
	d := env.registry.Get(name)
	if d == nil {
		t.Fatalf("plugin %q not registered", name)
	}
	return d
}

func TestPingCommand(t *testing.T) {
	env := newPluginEnv(t)
	registerCore(t, env)
	d := coreDescriptor(t, env, "ping")

	ev := groupMsg("om_1", "u1", ".ping")
	if err := env.invoke(d, ev, domain.Command{Name: "ping"}); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if env.messages.sentContaining("Pong") != 1 {
		t.Errorf("pong not sent: got %v", env.messages.sent)
	}
}

func TestMenuListsCommandPlugins(t *testing.T) {
	env := newPluginEnv(t)
	registerCore(t, env)
	d := coreDescriptor(t, env, "menu")

	ev := groupMsg("om_1", "u1", ".menu")
	if err := env.invoke(d, ev, domain.Command{Name: "menu"}); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if env.messages.sentContaining("ping") != 1 {
		t.Errorf("menu missing ping: got %v", env.messages.sent)
	}
	if env.messages.sentContaining("modlog") != 1 {
		t.Errorf("menu missing modlog: got %v", env.messages.sent)
	}
}

func TestDelCommand(t *testing.T) {
	env := newPluginEnv(t)
	registerCore(t, env)
	d := coreDescriptor(t, env, "del")

	// Members cannot delete.
	ev := groupMsg("om_1", "member", ".del")
	ev.ReplyToID = "om_target"
	if err := env.invoke(d, ev, domain.Command{Name: "del"}); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if len(env.messages.deleted) != 0 {
		t.Fatalf("member deleted a message")
	}

	// An owner replying to a message deletes it.
	owner := groupMsg("om_2", "boss", ".del")
	owner.ReplyToID = "om_target"
	env.users.Upsert(owner).Role = domain.RoleOwner
	if err := env.invoke(d, owner, domain.Command{Name: "del"}); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if len(env.messages.deleted) != 1 || env.messages.deleted[0] != "om_target" {
		t.Errorf("target not deleted: got %v", env.messages.deleted)
	}

	// Without a reply target the command explains itself.
	bare := groupMsg("om_3", "boss", ".del")
	if err := env.invoke(d, bare, domain.Command{Name: "del"}); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if env.messages.sentContaining("Reply to the message") != 1 {
		t.Errorf("usage notice not sent: got %v", env.messages.sent)
	}
}

func TestModeCommand(t *testing.T) {
	env := newPluginEnv(t)
	registerCore(t, env)
	d := coreDescriptor(t, env, "mode")

	owner := groupMsg("om_1", "boss", ".mode")
	env.users.Upsert(owner).Role = domain.RoleOwner

	// Bare invocation reports the current toggles.
	if err := env.invoke(d, owner, domain.Command{Name: "mode"}); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if env.messages.sentContaining("groupMode=true") != 1 {
		t.Errorf("status not reported: got %v", env.messages.sent)
	}

	// Key and value update a setting.
	if err := env.invoke(d, owner, domain.Command{Name: "mode", Args: []string{"groupMode", "false"}}); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if env.messages.sentContaining("groupMode set to false") != 1 {
		t.Errorf("confirmation not sent: got %v", env.messages.sent)
	}

	// Members are refused.
	member := groupMsg("om_2", "member", ".mode")
	if err := env.invoke(d, member, domain.Command{Name: "mode", Args: []string{"groupMode", "true"}}); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if env.messages.sentContaining("Only an owner") != 1 {
		t.Errorf("refusal not sent: got %v", env.messages.sent)
	}
}

func TestModlogCommand(t *testing.T) {
	env := newPluginEnv(t)
	registerCore(t, env)
	d := coreDescriptor(t, env, "modlog")

	owner := groupMsg("om_1", "boss", ".modlog")
	env.users.Upsert(owner).Role = domain.RoleOwner

	// Empty log reports cleanly.
	if err := env.invoke(d, owner, domain.Command{Name: "modlog"}); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if env.messages.sentContaining("No moderation actions") != 1 {
		t.Errorf("empty notice not sent: got %v", env.messages.sent)
	}

	env.modlog.Record(context.Background(), &repo.ModAction{
		Pipeline: "antilink", ChatID: "oc_group", SenderID: "u9", Action: "delete", Reason: "violation #1",
	})
	if err := env.invoke(d, owner, domain.Command{Name: "modlog"}); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if env.messages.sentContaining("antilink") != 1 {
		t.Errorf("entries not listed: got %v", env.messages.sent)
	}
}
