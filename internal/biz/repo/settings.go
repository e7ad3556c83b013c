package repo

import (
	"github.com/anthropics/feishu-guard/internal/biz/domain"
)

// SettingsRepo serves immutable settings snapshots and accepts updates.
type SettingsRepo interface {
	// Snapshot returns the current settings value. Snapshots are installed
	// atomically, so concurrent dispatches see either the fully old or
	// fully new document.
	Snapshot() domain.Settings

	// Set updates one key. With flush the write is persisted before
	// returning; otherwise it rides the debounced path.
	Set(key, value string, flush bool) error

	Close() error
}
