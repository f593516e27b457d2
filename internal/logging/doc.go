// Package logging assembles structured slog loggers and formatting helpers used
// across fieldsync services.
//
// It owns the console/JSON handlers, size-based file rotation, level parsing,
// and context-aware helpers so sync code can tag log lines with pass ids,
// queue item ids, and mutation types. The package also provides a no-op logger
// for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// the same field names (component, event_type, error_hint, impact) as the rest
// of the system.
package logging
