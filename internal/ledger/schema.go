package ledger

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS history_entries (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        identity TEXT NOT NULL,
        output_path TEXT,
        source_bytes INTEGER NOT NULL DEFAULT 0,
        output_bytes INTEGER NOT NULL DEFAULT 0,
        ratio REAL NOT NULL DEFAULT 0,
        outcome TEXT NOT NULL,
        completed_at TEXT NOT NULL
    )`,
	// Partial unique index is what makes the at-most-once conversion
	// guarantee hold even under concurrent completions.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_history_success
        ON history_entries(identity) WHERE outcome = 'succeeded'`,
	`CREATE INDEX IF NOT EXISTS idx_history_completed
        ON history_entries(completed_at)`,
}

func (l *Ledger) applyMigrations(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return nil
}
