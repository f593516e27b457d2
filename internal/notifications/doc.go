// Package notifications alerts an operator about sync events that need a
// human, such as a mutation dropped after its last retry.
//
// The ntfy implementation posts to the topic URL from config.toml. With no
// topic configured NewService returns a no-op, so callers never branch on
// whether alerts are enabled.
package notifications
