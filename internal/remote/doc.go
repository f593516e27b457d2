// Package remote delivers queued mutations to the maintenance API.
//
// Submitter is the narrow interface the sync orchestrator depends on. The
// HTTP Client resolves each mutation type to a route through the mutation
// registry, posts the payload verbatim with a bearer token, and tags the
// request with an Idempotency-Key so the server can discard replays of a
// mutation it already applied.
package remote
