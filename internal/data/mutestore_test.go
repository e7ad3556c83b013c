package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anthropics/feishu-guard/internal/biz/repo"
)

func TestMuteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "muted.json")
	store, err := NewMuteStore(testLogger(), path)
	if err != nil {
		t.Fatalf("NewMuteStore failed: %v", err)
	}

	expires := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	if err := store.Put("u1", repo.Mute{Active: true, ExpiresAt: expires, Violations: 10}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	m, ok := store.Get("u1")
	if !ok || !m.Active {
		t.Errorf("mute record mismatch: got %+v, ok=%v", m, ok)
	}
	if !m.ExpiresAt.Equal(expires) {
		t.Errorf("expiry mismatch: got %v", m.ExpiresAt)
	}

	// Every mutation persists immediately; a fresh store sees the record.
	reloaded, err := NewMuteStore(testLogger(), path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if m, ok := reloaded.Get("u1"); !ok || m.Violations != 10 {
		t.Errorf("persisted record mismatch: got %+v, ok=%v", m, ok)
	}

	if err := reloaded.Delete("u1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := reloaded.Get("u1"); ok {
		t.Errorf("deleted record still present")
	}
}

func TestMuteStoreMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "muted.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	store, err := NewMuteStore(testLogger(), path)
	if err != nil {
		t.Fatalf("NewMuteStore failed on malformed file: %v", err)
	}
	if _, ok := store.Get("anything"); ok {
		t.Errorf("malformed file produced records")
	}
}
