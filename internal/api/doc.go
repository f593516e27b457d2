// Package api defines the observer contract and wire-format types shared by
// the IPC and HTTP layers.
//
// # Observer Contract
//
// SyncService is the only surface user interfaces depend on. It exposes a
// read model (Snapshot: connectivity, sync status, queued items) and two
// operations: Sync triggers a manual pass and RefreshQueue re-reads the queue
// for display. Queue administration (enqueue, dead letters) rides on the same
// service so the CLI, JSON-RPC, and HTTP surfaces stay thin.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Timestamps
// use RFC3339 with milliseconds. Payloads pass through as json.RawMessage to
// avoid double-encoding.
package api
