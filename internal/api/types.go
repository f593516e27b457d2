package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queued mutation in a transport-friendly format.
type QueueItem struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Retries     int             `json:"retries"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	ScheduledAt string          `json:"scheduledAt,omitempty"`
	LastError   string          `json:"lastError,omitempty"`
}

// DeadLetter describes a mutation dropped after exhausting retries.
type DeadLetter struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Retries   int             `json:"retries"`
	CreatedAt string          `json:"createdAt,omitempty"`
	FailedAt  string          `json:"failedAt,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// Snapshot is the observer read model.
type Snapshot struct {
	IsOnline   bool        `json:"isOnline"`
	SyncStatus string      `json:"syncStatus"`
	QueueItems []QueueItem `json:"queueItems"`
}

// PassResult summarizes one sync pass.
type PassResult struct {
	PassID     string `json:"passId"`
	StartedAt  string `json:"startedAt,omitempty"`
	Attempted  int    `json:"attempted"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Dropped    int    `json:"dropped"`
	DurationMS int64  `json:"durationMs"`
}

// DatabaseHealth reports queue database diagnostics.
type DatabaseHealth struct {
	Path           string   `json:"path"`
	Exists         bool     `json:"exists"`
	IntegrityCheck string   `json:"integrityCheck,omitempty"`
	Migrations     []string `json:"migrations,omitempty"`
	MissingTables  []string `json:"missingTables,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running            bool            `json:"running"`
	PID                int             `json:"pid"`
	QueueDBPath        string          `json:"queueDbPath"`
	LockFilePath       string          `json:"lockFilePath"`
	RemoteURL          string          `json:"remoteUrl"`
	ProbeAddress       string          `json:"probeAddress"`
	ConnectivityReason string          `json:"connectivityReason,omitempty"`
	Snapshot           Snapshot        `json:"snapshot"`
	DeadLetters        int             `json:"deadLetters"`
	PassInProgress     bool            `json:"passInProgress"`
	LastPass           *PassResult     `json:"lastPass,omitempty"`
	LastError          string          `json:"lastError,omitempty"`
	Database           *DatabaseHealth `json:"database,omitempty"`
}

// EnqueueRequest asks the daemon to queue a mutation.
type EnqueueRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EnqueueResponse returns the id assigned to a queued mutation.
type EnqueueResponse struct {
	ID string `json:"id"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// DeadLetterListResponse wraps dropped mutations.
type DeadLetterListResponse struct {
	Items []DeadLetter `json:"items"`
}

// SyncResponse reports the outcome of a manual sync request.
type SyncResponse struct {
	Result  *PassResult `json:"result,omitempty"`
	Skipped string      `json:"skipped,omitempty"`
}
