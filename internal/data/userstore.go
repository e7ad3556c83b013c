package data

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anthropics/feishu-guard/internal/biz/domain"
	"github.com/anthropics/feishu-guard/internal/biz/repo"
)

const (
	defaultSaveDebounce  = 2 * time.Second
	startingCredits      = 10
	defaultUserFileperms = 0644
)

// FlushScheduler coalesces persistence work behind a trailing debounce.
// Tests inject a synchronous implementation to avoid real timers.
type FlushScheduler interface {
	// Schedule arranges for fn to run after the debounce interval,
	// replacing any previously scheduled run.
	Schedule(fn func())
	// Stop cancels any pending run.
	Stop()
}

// timerScheduler is the production scheduler backed by time.AfterFunc.
type timerScheduler struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewTimerScheduler returns a debounce scheduler with the given delay.
func NewTimerScheduler(delay time.Duration) FlushScheduler {
	if delay <= 0 {
		delay = defaultSaveDebounce
	}
	return &timerScheduler{delay: delay}
}

func (s *timerScheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, fn)
}

func (s *timerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// UserStore is the JSON-file user directory. One record per identity; writes
// go through a debounced flush with an explicit forced path, and the file is
// replaced atomically (temp file + rename) so a crash mid-write never
// corrupts it.
type UserStore struct {
	logger *slog.Logger
	path   string
	sched  FlushScheduler

	roles domain.RoleParams
	now   func() time.Time

	mu    sync.Mutex
	users map[string]*domain.User
}

// UserStoreOption tweaks store construction.
type UserStoreOption func(*UserStore)

// WithUserClock injects a time source for tests.
func WithUserClock(now func() time.Time) UserStoreOption {
	return func(s *UserStore) { s.now = now }
}

// WithFlushScheduler replaces the debounce scheduler.
func WithFlushScheduler(sched FlushScheduler) UserStoreOption {
	return func(s *UserStore) { s.sched = sched }
}

// NewUserStore opens (or lazily creates) the user directory at path. A
// missing or malformed file falls back to an empty directory with a warning;
// load errors are never fatal.
func NewUserStore(logger *slog.Logger, path string, roles domain.RoleParams, opts ...UserStoreOption) (*UserStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s := &UserStore{
		logger: logger.With("component", "userstore"),
		path:   path,
		sched:  NewTimerScheduler(defaultSaveDebounce),
		roles:  roles,
		now:    time.Now,
		users:  make(map[string]*domain.User),
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run.
	case err != nil:
		s.logger.Warn("user file unreadable, starting empty", "path", path, "err", err)
	default:
		if err := json.Unmarshal(raw, &s.users); err != nil {
			s.logger.Warn("user file malformed, starting empty", "path", path, "err", err)
			s.users = make(map[string]*domain.User)
		}
	}
	s.logger.Info("user directory loaded", "users", len(s.users))
	return s, nil
}

// Get returns a copy of the record for an identity, or nil.
func (s *UserStore) Get(id string) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

// Upsert resolves the record for an inbound event, creating it lazily on
// first contact. Exactly one interaction is counted per call.
func (s *UserStore) Upsert(ev *domain.Event) *domain.User {
	s.mu.Lock()
	now := s.now()
	u, ok := s.users[ev.SenderID]
	if !ok {
		u = &domain.User{
			ID:        ev.SenderID,
			Name:      ev.SenderName,
			Role:      domain.RoleMember,
			Credits:   startingCredits,
			CreatedAt: now,
		}
		s.users[ev.SenderID] = u
	}
	if ev.SenderName != "" {
		u.Name = ev.SenderName
	}
	u.Interactions++
	u.LastSeen = now
	u.Role = domain.ResolveRole(u.Role, ev.SenderID, ev.FromSelf, s.roles)
	cp := *u
	s.mu.Unlock()

	s.scheduleFlush()
	return &cp
}

// BumpDailyCounter increments a pipeline's daily counter on a record,
// resetting it first when the stored date is not today.
func (s *UserStore) BumpDailyCounter(id, pipeline string) int {
	today := s.now().Format(time.DateOnly)

	s.mu.Lock()
	u, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return 0
	}
	if u.Moderation == nil {
		u.Moderation = make(map[string]*domain.PipelineState)
	}
	st := u.Moderation[pipeline]
	if st == nil || st.Date != today {
		st = &domain.PipelineState{Date: today}
		u.Moderation[pipeline] = st
	}
	st.Count++
	count := st.Count
	s.mu.Unlock()

	s.scheduleFlush()
	return count
}

// FlushNow persists synchronously and surfaces the error.
func (s *UserStore) FlushNow() error {
	s.sched.Stop()
	return s.save()
}

// Close flushes and releases the store.
func (s *UserStore) Close() error {
	return s.FlushNow()
}

func (s *UserStore) scheduleFlush() {
	s.sched.Schedule(func() {
		// Debounced-path errors are swallowed; the next write retries.
		if err := s.save(); err != nil {
			s.logger.Error("user save failed", "err", err)
		}
	})
}

func (s *UserStore) save() error {
	s.mu.Lock()
	raw, err := json.MarshalIndent(s.users, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal users: %w", err)
	}
	return atomicWrite(s.path, raw)
}

// atomicWrite replaces path with data via a temp file and rename, so readers
// never observe a half-written file.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, defaultUserFileperms); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

var _ repo.UserRepo = (*UserStore)(nil)
