package data

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func newTestSettingsStore(t *testing.T) (*SettingsStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := NewSettingsStore(testLogger(), path, &syncScheduler{})
	if err != nil {
		t.Fatalf("NewSettingsStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestSettingsStoreDefaults(t *testing.T) {
	store, path := newTestSettingsStore(t)

	s := store.Snapshot()
	if !s.GroupMode || !s.PrivateMode || !s.SelfNotify {
		t.Errorf("defaults mismatch: got %+v", s)
	}

	// First run seeds the file.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("settings file not seeded: %v", err)
	}
}

func TestSettingsStoreSet(t *testing.T) {
	store, path := newTestSettingsStore(t)

	if err := store.Set("groupMode", "false", true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if store.Snapshot().GroupMode {
		t.Errorf("snapshot not updated")
	}

	// A flushed write is durable immediately.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read settings file: %v", err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("settings file malformed: %v", err)
	}
	if onDisk["groupMode"] != false {
		t.Errorf("flushed value not persisted: got %v", onDisk["groupMode"])
	}

	if err := store.Set("groupMode", "banana", true); err == nil {
		t.Errorf("unparsable boolean accepted")
	}
}

func TestSettingsStoreDebouncedSet(t *testing.T) {
	store, _ := newTestSettingsStore(t)

	if err := store.Set("selfNotify", "false", false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	// The snapshot reflects the write even before any flush.
	if store.Snapshot().SelfNotify {
		t.Errorf("snapshot missed debounced write")
	}
}

// holdScheduler captures the flush without running it, modelling the window
// between a debounced write and its timer firing.
type holdScheduler struct {
	held func()
}

func (h *holdScheduler) Schedule(fn func()) { h.held = fn }
func (h *holdScheduler) Stop()              { h.held = nil }

func TestSettingsStoreReloadKeepsPendingWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	sched := &holdScheduler{}
	store, err := NewSettingsStore(testLogger(), path, sched)
	if err != nil {
		t.Fatalf("NewSettingsStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Set("groupMode", "false", false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// A watcher event lands while the flush is still pending. The file
	// still holds the old value and must not win.
	store.reload()
	if store.Snapshot().GroupMode {
		t.Errorf("reload clobbered a pending write")
	}

	// The held flush writes the newer document, after which reloads apply
	// again.
	if sched.held == nil {
		t.Fatalf("debounced flush not scheduled")
	}
	sched.held()
	store.reload()
	if store.Snapshot().GroupMode {
		t.Errorf("flushed value lost on reload: got %+v", store.Snapshot())
	}
}

func TestSettingsStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := NewSettingsStore(testLogger(), path, &syncScheduler{})
	if err != nil {
		t.Fatalf("NewSettingsStore failed: %v", err)
	}
	store.Set("notifyChatId", "oc_123", true)
	store.Set("privateMode", "false", true)
	store.Close()

	reloaded, err := NewSettingsStore(testLogger(), path, &syncScheduler{})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	defer reloaded.Close()

	s := reloaded.Snapshot()
	if s.NotifyChatID != "oc_123" {
		t.Errorf("notifyChatId mismatch: got %q", s.NotifyChatID)
	}
	if s.PrivateMode {
		t.Errorf("privateMode not persisted")
	}
	if !s.GroupMode {
		t.Errorf("untouched key lost its default")
	}
}

func TestSettingsStoreMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	store, err := NewSettingsStore(testLogger(), path, &syncScheduler{})
	if err != nil {
		t.Fatalf("NewSettingsStore failed on malformed file: %v", err)
	}
	defer store.Close()

	if !store.Snapshot().GroupMode {
		t.Errorf("malformed file did not fall back to defaults")
	}
}
