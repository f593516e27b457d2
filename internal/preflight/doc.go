// Package preflight runs quick environment checks before the daemon starts:
// data and log directories are writable, the probe address answers, and the
// maintenance API accepts the configured token.
//
// Checks never fail hard. Callers decide whether to print the results
// (fieldsync config validate) or log them as warnings (daemon startup).
package preflight
