package queue

import (
	"encoding/json"
	"time"
)

// Item is a pending mutation awaiting delivery to the remote service.
type Item struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Retries     int             `json:"retries"`
	CreatedAt   time.Time       `json:"createdAt"`
	ScheduledAt time.Time       `json:"scheduledAt"`
	LastError   string          `json:"lastError,omitempty"`
}

// IsDue reports whether the item may be attempted at now. First attempts are
// always eligible regardless of scheduledAt.
func (i Item) IsDue(now time.Time) bool {
	return i.Retries == 0 || !i.ScheduledAt.After(now)
}

// Patch carries the fields an Update merges into an existing item. Nil
// fields are left untouched.
type Patch struct {
	Retries     *int
	ScheduledAt *time.Time
	LastError   *string
}

func (p Patch) empty() bool {
	return p.Retries == nil && p.ScheduledAt == nil && p.LastError == nil
}

// DeadLetter is a queue item dropped after exhausting its retry budget.
type DeadLetter struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"createdAt"`
	FailedAt  time.Time       `json:"failedAt"`
	Reason    string          `json:"reason,omitempty"`
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath         string
	DatabaseExists bool
	IntegrityCheck string
	Migrations     []string
	QueueItems     int
	DeadLetters    int
	MissingTables  []string
	Error          string
}
