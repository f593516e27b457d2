package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

var requiredTables = []string{"queue_items", "dead_letters", "schema_migrations"}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat queue database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}

	for _, table := range requiredTables {
		var count int
		row := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		if err := row.Scan(&count); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("query table %s: %w", table, err)
		}
		if count == 0 {
			health.MissingTables = append(health.MissingTables, table)
		}
	}
	if len(health.MissingTables) > 0 {
		return health, nil
	}

	if health.Migrations, err = s.appliedMigrations(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("list migrations: %w", err)
	}
	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM queue_items").Scan(&health.QueueItems); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count queue items: %w", err)
	}
	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM dead_letters").Scan(&health.DeadLetters); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count dead letters: %w", err)
	}

	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&health.IntegrityCheck); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	return health, nil
}

// Healthy reports whether the database exists, has every table, and passes
// the integrity check.
func (h DatabaseHealth) Healthy() bool {
	return h.DatabaseExists && len(h.MissingTables) == 0 && h.IntegrityCheck == "ok" && h.Error == ""
}
