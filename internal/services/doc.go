// Package services defines shared utilities consumed by the workflow manager,
// the job supervisor and the upload adapter.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is instead of string matching.
package services
