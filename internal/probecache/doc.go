// Package probecache stores ffprobe results in SQLite so re-selecting the
// same unchanged file skips the probe.
package probecache
