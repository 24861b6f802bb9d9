// Package workflow drives one clip from a source path to a terminal outcome.
//
// The Manager owns the last-known-good encoding parameters, the currently
// selected MediaSource, a single Supervisor and the Outcome Reporter.
// Process runs the pipeline probe -> resolve -> range -> build -> preflight
// -> submit and returns a Submission; Await blocks until that submission
// reaches a terminal Outcome. Validation failures are returned as errors and
// never start a job. Failures found before launch (missing encoder,
// unwritable output directory, unreadable source) become failure outcomes
// without spawning a process so callers render them the same way as encoder
// failures.
//
// Finished jobs are recorded in a bounded history and their encoder logs are
// written under <log_dir>/jobs for later inspection.
package workflow
