package api

import (
	"time"

	"fieldsync/internal/queue"
	"fieldsync/internal/syncer"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	return QueueItem{
		ID:          item.ID,
		Type:        item.Type,
		Payload:     item.Payload,
		Retries:     item.Retries,
		CreatedAt:   formatTime(item.CreatedAt),
		ScheduledAt: formatTime(item.ScheduledAt),
		LastError:   item.LastError,
	}
}

// FromQueueItems converts a slice of queue records, preserving order.
func FromQueueItems(items []*queue.Item) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromDeadLetters converts dead-letter records.
func FromDeadLetters(letters []*queue.DeadLetter) []DeadLetter {
	out := make([]DeadLetter, 0, len(letters))
	for _, dl := range letters {
		if dl == nil {
			continue
		}
		out = append(out, DeadLetter{
			ID:        dl.ID,
			Type:      dl.Type,
			Payload:   dl.Payload,
			Retries:   dl.Retries,
			CreatedAt: formatTime(dl.CreatedAt),
			FailedAt:  formatTime(dl.FailedAt),
			Reason:    dl.Reason,
		})
	}
	return out
}

// FromPassResult converts an orchestrator pass summary.
func FromPassResult(res *syncer.PassResult) *PassResult {
	if res == nil {
		return nil
	}
	return &PassResult{
		PassID:     res.PassID,
		StartedAt:  formatTime(res.StartedAt),
		Attempted:  res.Attempted,
		Succeeded:  res.Succeeded,
		Failed:     res.Failed,
		Dropped:    res.Dropped,
		DurationMS: res.Duration.Milliseconds(),
	}
}

// FromDatabaseHealth converts queue diagnostics.
func FromDatabaseHealth(h queue.DatabaseHealth) *DatabaseHealth {
	return &DatabaseHealth{
		Path:           h.DBPath,
		Exists:         h.DatabaseExists,
		IntegrityCheck: h.IntegrityCheck,
		Migrations:     h.Migrations,
		MissingTables:  h.MissingTables,
		Error:          h.Error,
	}
}
