package data

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/anthropics/feishu-guard/internal/biz/domain"
	"github.com/anthropics/feishu-guard/internal/biz/repo"
)

// SettingsStore serves the process-wide settings document. The current
// value lives behind an atomic pointer: readers always see a complete
// snapshot, and hot reloads or updates install a fresh document in one step.
type SettingsStore struct {
	logger *slog.Logger
	path   string
	sched  FlushScheduler

	current atomic.Pointer[domain.Settings]

	// writeMu serializes Set calls so concurrent updates don't lose writes
	// between load and store. It also guards dirty.
	writeMu sync.Mutex
	// dirty marks a local update awaiting its debounced flush. While set,
	// watcher reloads are ignored: the file is older than the snapshot, and
	// the store's own flush would otherwise bounce back through the watcher
	// and clobber the pending value.
	dirty bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSettingsStore loads the settings file, falling back to defaults when it
// is missing or malformed, and starts watching it for external changes.
func NewSettingsStore(logger *slog.Logger, path string, sched FlushScheduler) (*SettingsStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if sched == nil {
		sched = NewTimerScheduler(defaultSaveDebounce)
	}

	s := &SettingsStore{
		logger: logger.With("component", "settings"),
		path:   path,
		sched:  sched,
		done:   make(chan struct{}),
	}

	settings := s.loadOrDefault()
	s.current.Store(&settings)

	// Seed the file on first run so the watcher has something to watch.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.persist(settings); err != nil {
			s.logger.Warn("could not seed settings file", "err", err)
		}
	}

	if err := s.startWatcher(); err != nil {
		// Hot reload is best effort; the store still works without it.
		s.logger.Warn("settings watcher unavailable", "err", err)
	}
	return s, nil
}

// Snapshot returns the current immutable settings value.
func (s *SettingsStore) Snapshot() domain.Settings {
	return *s.current.Load()
}

// Set updates one key and installs the new snapshot atomically. With flush
// the write is durable before returning.
func (s *SettingsStore) Set(key, value string, flush bool) error {
	s.writeMu.Lock()
	next, ok := s.current.Load().With(key, value)
	if !ok {
		s.writeMu.Unlock()
		return fmt.Errorf("invalid value %q for setting %q", value, key)
	}
	s.current.Store(&next)
	s.dirty = !flush
	s.writeMu.Unlock()

	if flush {
		s.sched.Stop()
		return s.persist(next)
	}
	s.sched.Schedule(func() {
		if err := s.persistCurrent(); err != nil {
			s.logger.Error("settings save failed", "err", err)
		}
	})
	return nil
}

// persistCurrent flushes the live snapshot and clears the dirty mark before
// writing, so a reload triggered by this write sees a clean store.
func (s *SettingsStore) persistCurrent() error {
	s.writeMu.Lock()
	settings := *s.current.Load()
	s.dirty = false
	s.writeMu.Unlock()
	return s.persist(settings)
}

// Close stops the watcher and flushes pending writes.
func (s *SettingsStore) Close() error {
	close(s.done)
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.sched.Stop()
	return s.persistCurrent()
}

func (s *SettingsStore) loadOrDefault() domain.Settings {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("settings file unreadable, using defaults", "err", err)
		}
		return domain.DefaultSettings()
	}
	settings := domain.DefaultSettings()
	if err := json.Unmarshal(raw, &settings); err != nil {
		s.logger.Warn("settings file malformed, using defaults", "err", err)
		return domain.DefaultSettings()
	}
	return settings
}

func (s *SettingsStore) persist(settings domain.Settings) error {
	raw, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return atomicWrite(s.path, raw)
}

func (s *SettingsStore) startWatcher() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors and atomic renames replace the file
	// inode, which a direct file watch would lose.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return err
	}
	s.watcher = w

	go func() {
		for {
			select {
			case <-s.done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name != s.path || !ev.Op.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				s.reload()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("settings watcher error", "err", err)
			}
		}
	}()
	return nil
}

// reload re-reads the file and installs the new snapshot atomically. A
// malformed file keeps the old snapshot, and so does a pending local update:
// the file cannot be newer than a write that has not been flushed yet.
func (s *SettingsStore) reload() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn("settings reload failed", "err", err)
		return
	}
	settings := domain.DefaultSettings()
	if err := json.Unmarshal(raw, &settings); err != nil {
		s.logger.Warn("settings reload: malformed file, keeping current", "err", err)
		return
	}
	s.writeMu.Lock()
	if s.dirty {
		s.writeMu.Unlock()
		s.logger.Debug("settings reload skipped, local update pending")
		return
	}
	s.current.Store(&settings)
	s.writeMu.Unlock()
	s.logger.Info("settings reloaded from file")
}

var _ repo.SettingsRepo = (*SettingsStore)(nil)
