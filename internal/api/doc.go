// Package api exposes the clip workflow over HTTP and provides the matching
// client used by the CLI.
//
// # Routes
//
//	GET  /api/health               tool and directory readiness
//	GET  /api/status               busy flag, current job, source, parameters
//	POST /api/probe                select a source and return its inventory
//	POST /api/jobs                 start a clip (202, 409 busy, 400 invalid)
//	GET  /api/jobs/current         active or most recent job
//	GET  /api/jobs/{id}            job snapshot plus outcome once terminal
//	GET  /api/jobs/{id}/events     buffered events after ?after=N, optional ?wait=
//	POST /api/jobs/{id}/cancel     request cancellation
//	POST /api/uploads              upload a file or a finished job's output
//
// # Design Notes
//
// DTOs use camelCase JSON tags for browser consumers and never expose internal
// structs directly. Durations are reported in seconds, timestamps as RFC3339
// with milliseconds. CORS is limited to the configured origins and an
// optional bearer token guards every route except /api/health.
package api
