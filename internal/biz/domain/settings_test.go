package domain

import "testing"

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if !s.GroupMode || !s.PrivateMode || !s.SelfNotify {
		t.Errorf("defaults mismatch: got %+v", s)
	}
}

func TestSettingsWith(t *testing.T) {
	s := DefaultSettings()

	next, ok := s.With("groupMode", "false")
	if !ok {
		t.Fatalf("groupMode update rejected")
	}
	if next.GroupMode {
		t.Errorf("groupMode not updated")
	}
	if !s.GroupMode {
		t.Errorf("original settings mutated")
	}

	if _, ok := s.With("privateMode", "banana"); ok {
		t.Errorf("unparsable boolean accepted")
	}

	next, ok = s.With("notifyChatId", "oc_123")
	if !ok || next.NotifyChatID != "oc_123" {
		t.Errorf("notifyChatId mismatch: got %q", next.NotifyChatID)
	}

	next, ok = s.With("customToggle", "yes")
	if !ok || next.Extra["customToggle"] != "yes" {
		t.Errorf("extra key mismatch: got %v", next.Extra)
	}
	if s.Extra != nil {
		t.Errorf("original Extra map created on copy")
	}
}

func TestSettingsWithCopiesExtra(t *testing.T) {
	s := DefaultSettings()
	s.Extra = map[string]string{"a": "1"}

	next, _ := s.With("b", "2")
	if next.Extra["a"] != "1" || next.Extra["b"] != "2" {
		t.Errorf("extra merge mismatch: got %v", next.Extra)
	}
	if _, ok := s.Extra["b"]; ok {
		t.Errorf("original Extra map mutated")
	}
}
