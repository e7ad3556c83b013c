package repo

import (
	"github.com/anthropics/feishu-guard/internal/biz/domain"
)

// UserRepo is the user directory interface.
// The implementation owns per-record locking; callers get value copies.
type UserRepo interface {
	// Get returns the record for an identity, or nil when absent.
	Get(id string) *domain.User

	// Upsert resolves the record for an inbound event, creating it on first
	// contact. Every call increments the interaction counter exactly once,
	// refreshes last-seen, and re-applies role resolution (upward only).
	// The write is persisted on the debounced path.
	Upsert(ev *domain.Event) *domain.User

	// BumpDailyCounter increments the named pipeline's daily counter on a
	// user record, resetting it first when the stored date differs from
	// today, and returns the new count.
	BumpDailyCounter(id, pipeline string) int

	// FlushNow persists synchronously; the error is surfaced to the caller.
	FlushNow() error

	Close() error
}
