// Package daemon runs the long-lived clipper service.
//
// It holds a flock-based instance lock so only one daemon owns the output
// directory at a time, serves the HTTP control API from internal/api, and
// drains the workflow manager on shutdown so a running encode is cancelled
// and its partial output removed before the process exits.
package daemon
