package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anthropics/feishu-guard/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// modLogRepo is the SQLite-backed moderation audit log.
type modLogRepo struct {
	db *sql.DB
}

// NewModLogRepo opens (creating if needed) the moderation log database.
func NewModLogRepo(dbPath string) (repo.ModLogRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS mod_actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pipeline TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			action TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_mod_actions_at ON mod_actions(at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &modLogRepo{db: db}, nil
}

// Record inserts one enforcement verdict.
func (r *modLogRepo) Record(ctx context.Context, a *repo.ModAction) error {
	at := a.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mod_actions (pipeline, chat_id, sender_id, action, reason, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.Pipeline, a.ChatID, a.SenderID, a.Action, a.Reason, at.Unix())
	if err != nil {
		return fmt.Errorf("failed to record mod action: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (r *modLogRepo) Recent(ctx context.Context, limit int) ([]*repo.ModAction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, pipeline, chat_id, sender_id, action, reason, at
		FROM mod_actions
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query mod actions: %w", err)
	}
	defer rows.Close()

	var actions []*repo.ModAction
	for rows.Next() {
		var a repo.ModAction
		var at int64
		if err := rows.Scan(&a.ID, &a.Pipeline, &a.ChatID, &a.SenderID, &a.Action, &a.Reason, &at); err != nil {
			return nil, fmt.Errorf("failed to scan mod action: %w", err)
		}
		a.At = time.Unix(at, 0)
		actions = append(actions, &a)
	}
	return actions, rows.Err()
}

// Close closes the database connection.
func (r *modLogRepo) Close() error {
	return r.db.Close()
}
