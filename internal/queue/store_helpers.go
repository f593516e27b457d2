package queue

import (
	"database/sql"
	"encoding/json"
	"time"
)

const itemColumns = "id, type, payload, retries, created_at, scheduled_at, last_error"

const deadLetterColumns = "id, type, payload, retries, created_at, failed_at, reason"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(scanner rowScanner) (*Item, error) {
	var (
		item        Item
		payload     string
		createdMS   int64
		scheduledMS int64
		lastError   sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&item.Type,
		&payload,
		&item.Retries,
		&createdMS,
		&scheduledMS,
		&lastError,
	); err != nil {
		return nil, err
	}
	item.Payload = json.RawMessage(payload)
	item.CreatedAt = fromMillis(createdMS)
	item.ScheduledAt = fromMillis(scheduledMS)
	item.LastError = lastError.String
	return &item, nil
}

func scanDeadLetter(scanner rowScanner) (*DeadLetter, error) {
	var (
		dl        DeadLetter
		payload   string
		createdMS int64
		failedMS  int64
		reason    sql.NullString
	)
	if err := scanner.Scan(
		&dl.ID,
		&dl.Type,
		&payload,
		&dl.Retries,
		&createdMS,
		&failedMS,
		&reason,
	); err != nil {
		return nil, err
	}
	dl.Payload = json.RawMessage(payload)
	dl.CreatedAt = fromMillis(createdMS)
	dl.FailedAt = fromMillis(failedMS)
	dl.Reason = reason.String
	return &dl, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
