package ipc

import (
	"encoding/json"

	"fieldsync/internal/api"
)

// StartRequest triggers daemon startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops background sync.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse mirrors the HTTP status payload.
type StatusResponse = api.DaemonStatus

// QueueItem mirrors the HTTP API queue DTO for internal IPC callers.
type QueueItem = api.QueueItem

// DeadLetter mirrors the HTTP API dead-letter DTO.
type DeadLetter = api.DeadLetter

// QueueListRequest lists queued mutations.
type QueueListRequest struct{}

// QueueListResponse contains queue entries in insertion order.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// EnqueueRequest queues a mutation.
type EnqueueRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EnqueueResponse returns the assigned id.
type EnqueueResponse struct {
	ID string `json:"id"`
}

// QueueClearRequest removes all items.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// SyncRequest runs a pass. With Wait unset the pass is only requested.
type SyncRequest struct {
	Wait bool `json:"wait"`
}

// SyncResponse reports the pass outcome.
type SyncResponse = api.SyncResponse

// DeadLetterListRequest lists dropped mutations.
type DeadLetterListRequest struct{}

// DeadLetterListResponse contains dropped mutations.
type DeadLetterListResponse struct {
	Items []DeadLetter `json:"items"`
}

// DeadLetterRequeueRequest moves one dead letter back into the queue.
type DeadLetterRequeueRequest struct {
	ID string `json:"id"`
}

// DeadLetterRequeueResponse returns the id of the re-queued item.
type DeadLetterRequeueResponse struct {
	ID string `json:"id"`
}

// DeadLetterPurgeRequest deletes every dead letter.
type DeadLetterPurgeRequest struct{}

// DeadLetterPurgeResponse reports number of removed entries.
type DeadLetterPurgeResponse struct {
	Removed int64 `json:"removed"`
}

// DatabaseHealthRequest fetches queue database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse mirrors the HTTP database health payload.
type DatabaseHealthResponse = api.DatabaseHealth

// TestNotificationRequest sends a test ntfy message.
type TestNotificationRequest struct{}

// TestNotificationResponse reports whether the message was delivered.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
}
