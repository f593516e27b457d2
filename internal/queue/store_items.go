package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Persist inserts a new item. Any rejection by the database is returned as a
// StorageError.
func (s *Store) Persist(ctx context.Context, item *Item) error {
	if item == nil {
		return storageErr("persist", errors.New("nil item"))
	}
	if item.ID == "" {
		return storageErr("persist", errors.New("item id is required"))
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO queue_items (id, type, payload, retries, created_at, scheduled_at, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.Type,
		string(item.Payload),
		item.Retries,
		toMillis(item.CreatedAt),
		toMillis(item.ScheduledAt),
		nullableString(item.LastError),
	)
	return storageErr("persist", err)
}

// Get fetches a single item by id.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storageErr("get", fmt.Errorf("%s: %w", id, ErrNotFound))
	}
	if err != nil {
		return nil, storageErr("get", err)
	}
	return item, nil
}

// List returns every queued item in insertion order.
func (s *Store) List(ctx context.Context) ([]*Item, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM queue_items ORDER BY seq`)
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer rows.Close()

	items := make([]*Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, storageErr("list", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", err)
	}
	return items, nil
}

// Remove deletes an item. Removing an absent id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	_, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	return storageErr("remove", err)
}

// Update merges the non-nil fields of patch into the stored item. Retries may
// only grow; a lower value is rejected with ErrRetriesDecrease.
func (s *Store) Update(ctx context.Context, id string, patch Patch) error {
	if patch.empty() {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return nil
	}

	var (
		sets  []string
		args  []any
		guard string
	)
	if patch.Retries != nil {
		if *patch.Retries < 0 {
			return storageErr("update", fmt.Errorf("retries %d: %w", *patch.Retries, ErrRetriesDecrease))
		}
		sets = append(sets, "retries = ?")
		args = append(args, *patch.Retries)
	}
	if patch.ScheduledAt != nil {
		sets = append(sets, "scheduled_at = ?")
		args = append(args, toMillis(*patch.ScheduledAt))
	}
	if patch.LastError != nil {
		sets = append(sets, "last_error = ?")
		args = append(args, nullableString(*patch.LastError))
	}
	args = append(args, id)
	if patch.Retries != nil {
		guard = " AND retries <= ?"
		args = append(args, *patch.Retries)
	}

	query := "UPDATE queue_items SET " + strings.Join(sets, ", ") + " WHERE id = ?" + guard
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return storageErr("update", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("update", err)
	}
	if affected > 0 {
		return nil
	}
	return s.explainMissedUpdate(ctx, id, patch)
}

// explainMissedUpdate reports why an UPDATE touched no row. The row may have
// been written again since, so a patch without retries is always a miss.
func (s *Store) explainMissedUpdate(ctx context.Context, id string, patch Patch) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if patch.Retries == nil {
		return storageErr("update", fmt.Errorf("item %s: %w", id, ErrNotFound))
	}
	return storageErr("update", fmt.Errorf("item %s has %d retries, refusing %d: %w",
		id, existing.Retries, *patch.Retries, ErrRetriesDecrease))
}

// Count returns the number of queued items.
func (s *Store) Count(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM queue_items`).Scan(&count); err != nil {
		return 0, storageErr("count", err)
	}
	return count, nil
}

// Clear removes every queued item and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return 0, storageErr("clear", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("clear", err)
	}
	return affected, nil
}
