// Package syncer replays queued mutations against the remote service.
//
// The Orchestrator runs at most one pass at a time. A pass snapshots the due
// items, submits each one, removes delivered items, and reschedules failed
// ones with exponential backoff until the retry budget is spent. Passes are
// requested by connectivity transitions, a fixed interval timer, and manual
// calls; overlapping requests collapse into the pass already running.
//
// StatusMachine holds the aggregate sync status shown to users: Offline,
// Online, Syncing, Synced, and Failed. Synced and Failed are transient and
// revert to Online after a short display delay.
package syncer
