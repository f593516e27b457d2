package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DeadLetter removes item from the queue and records it in the dead-letter
// table in one transaction, so the item is never present in both.
func (s *Store) DeadLetter(ctx context.Context, item *Item, reason string, failedAt time.Time) error {
	if item == nil {
		return storageErr("dead_letter", errors.New("nil item"))
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, item.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO dead_letters (id, type, payload, retries, created_at, failed_at, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   retries = excluded.retries,
			   failed_at = excluded.failed_at,
			   reason = excluded.reason`,
			item.ID,
			item.Type,
			string(item.Payload),
			item.Retries,
			toMillis(item.CreatedAt),
			toMillis(failedAt),
			nullableString(reason),
		)
		return err
	})
	return storageErr("dead_letter", err)
}

// ListDeadLetters returns dropped items, oldest failure first.
func (s *Store) ListDeadLetters(ctx context.Context) ([]*DeadLetter, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+deadLetterColumns+` FROM dead_letters ORDER BY seq`)
	if err != nil {
		return nil, storageErr("list_dead_letters", err)
	}
	defer rows.Close()

	letters := make([]*DeadLetter, 0)
	for rows.Next() {
		dl, err := scanDeadLetter(rows)
		if err != nil {
			return nil, storageErr("list_dead_letters", err)
		}
		letters = append(letters, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list_dead_letters", err)
	}
	return letters, nil
}

// GetDeadLetter fetches one dead letter by item id.
func (s *Store) GetDeadLetter(ctx context.Context, id string) (*DeadLetter, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+deadLetterColumns+` FROM dead_letters WHERE id = ?`, id)
	dl, err := scanDeadLetter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storageErr("get_dead_letter", fmt.Errorf("%s: %w", id, ErrNotFound))
	}
	if err != nil {
		return nil, storageErr("get_dead_letter", err)
	}
	return dl, nil
}

// RemoveDeadLetter deletes a dead letter. Absent ids are ignored.
func (s *Store) RemoveDeadLetter(ctx context.Context, id string) error {
	_, err := s.execWithRetry(ctx, `DELETE FROM dead_letters WHERE id = ?`, id)
	return storageErr("remove_dead_letter", err)
}

// PurgeDeadLetters deletes every dead letter and returns how many were removed.
func (s *Store) PurgeDeadLetters(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM dead_letters`)
	if err != nil {
		return 0, storageErr("purge_dead_letters", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("purge_dead_letters", err)
	}
	return affected, nil
}

// Requeue moves a dead letter back into the queue as replacement, deleting
// the dead letter in the same transaction.
func (s *Store) Requeue(ctx context.Context, deadLetterID string, replacement *Item) error {
	if replacement == nil {
		return storageErr("requeue", errors.New("nil item"))
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = ?`, deadLetterID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("dead letter %s: %w", deadLetterID, ErrNotFound)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO queue_items (id, type, payload, retries, created_at, scheduled_at, last_error)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			replacement.ID,
			replacement.Type,
			string(replacement.Payload),
			replacement.Retries,
			toMillis(replacement.CreatedAt),
			toMillis(replacement.ScheduledAt),
			nullableString(replacement.LastError),
		)
		return err
	})
	return storageErr("requeue", err)
}
