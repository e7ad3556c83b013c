package data

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/anthropics/feishu-guard/internal/biz/repo"
)

func TestModLogRecordAndRecent(t *testing.T) {
	store, err := NewModLogRepo(filepath.Join(t.TempDir(), "modlog.db"))
	if err != nil {
		t.Fatalf("NewModLogRepo failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	actions := []*repo.ModAction{
		{Pipeline: "antispam", ChatID: "oc_1", SenderID: "u1", Action: "warn", Reason: "5 identical messages"},
		{Pipeline: "antilink", ChatID: "oc_1", SenderID: "u2", Action: "delete", Reason: "violation #1"},
		{Pipeline: "profanity", ChatID: "oc_2", SenderID: "u3", Action: "mute", Reason: "repeated profanity"},
	}
	for _, a := range actions {
		if err := store.Record(ctx, a); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("result count mismatch: got %d", len(got))
	}
	// Newest first.
	if got[0].Pipeline != "profanity" {
		t.Errorf("order mismatch: got %q first", got[0].Pipeline)
	}
	if got[0].At.IsZero() {
		t.Errorf("timestamp not defaulted")
	}

	all, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("default limit mismatch: got %d records", len(all))
	}
}
