// Package mutation describes the state-changing operations fieldsync can
// queue while the remote maintenance API is unreachable.
//
// Each mutation type has a tag (the queue item's type), a remote route, and a
// payload validator. Payloads are checked at enqueue time so malformed data
// never reaches the durable queue. The registry is open: callers register
// additional types alongside the built-in work order and check submissions.
package mutation
