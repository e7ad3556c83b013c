package data

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/anthropics/feishu-guard/internal/biz/repo"
)

// MuteStore is the durable per-sender mute table backing the profanity
// pipeline. The table is small and changes rarely, so every mutation is
// persisted immediately with an atomic file replace.
type MuteStore struct {
	logger *slog.Logger
	path   string

	mu    sync.Mutex
	mutes map[string]repo.Mute
}

// NewMuteStore loads the mute table at path, starting empty when the file is
// missing or malformed.
func NewMuteStore(logger *slog.Logger, path string) (*MuteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s := &MuteStore{
		logger: logger.With("component", "mutestore"),
		path:   path,
		mutes:  make(map[string]repo.Mute),
	}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		s.logger.Warn("mute file unreadable, starting empty", "err", err)
	default:
		if err := json.Unmarshal(raw, &s.mutes); err != nil {
			s.logger.Warn("mute file malformed, starting empty", "err", err)
			s.mutes = make(map[string]repo.Mute)
		}
	}
	return s, nil
}

// Get returns a sender's mute record.
func (s *MuteStore) Get(senderID string) (repo.Mute, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mutes[senderID]
	return m, ok
}

// Put stores a sender's mute record and persists the table.
func (s *MuteStore) Put(senderID string, m repo.Mute) error {
	s.mu.Lock()
	s.mutes[senderID] = m
	err := s.saveLocked()
	s.mu.Unlock()
	return err
}

// Delete removes a sender's mute record and persists the table.
func (s *MuteStore) Delete(senderID string) error {
	s.mu.Lock()
	delete(s.mutes, senderID)
	err := s.saveLocked()
	s.mu.Unlock()
	return err
}

// Close persists the table one last time.
func (s *MuteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *MuteStore) saveLocked() error {
	raw, err := json.MarshalIndent(s.mutes, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mutes: %w", err)
	}
	return atomicWrite(s.path, raw)
}

var _ repo.MuteRepo = (*MuteStore)(nil)
