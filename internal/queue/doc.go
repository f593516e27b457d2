// Package queue persists pending mutations in SQLite and exposes the manager
// that owns their business semantics.
//
// The Store is a durable keyed collection of queue items that survives process
// restarts: insert, list in insertion order, remove, and partial update. It
// also keeps the dead-letter table that receives items whose retry budget is
// exhausted. Storage failures are wrapped as StorageError and always reach the
// caller.
//
// The Manager is the only component that creates queue items. It validates
// payloads against the mutation registry, generates ULID identifiers, and
// selects due items for the sync orchestrator.
//
// Schema changes ship as numbered files under migrations/ and are applied in
// order on Open.
package queue
