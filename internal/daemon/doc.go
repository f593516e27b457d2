// Package daemon coordinates the long-running fieldsync process.
//
// It wires configuration, queue storage, the connectivity monitor, and the
// sync orchestrator into a single lifecycle with flock-based locking to
// prevent multiple instances. The orchestrator and the optional HTTP API run
// under one errgroup so a failure in either stops the other.
//
// The HTTP API serves the observer contract to local UIs: status, queue
// listing and enqueue, manual sync, dead-letter maintenance, and a websocket
// stream that pushes a fresh snapshot on every sync status transition.
//
// Keep orchestration logic here: sync semantics live in the syncer package
// while the daemon focuses on startup, shutdown, and high level coordination.
package daemon
