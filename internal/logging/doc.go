// Package logging assembles structured slog loggers used across Clipper.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context-aware helpers that tag log lines with job IDs, stages and
// correlation IDs. A no-op logger is provided for tests and wiring code.
package logging
