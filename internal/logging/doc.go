// Package logging assembles structured slog loggers and formatting helpers used
// across the zxing client, CLI, and decoder server.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so supervision and session code tag
// log lines with the same keys (component, session_id, port, pid). The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
