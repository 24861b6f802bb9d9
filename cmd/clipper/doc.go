// Command clipper trims and re-encodes video clips with ffmpeg.
//
// Local commands (probe, clip, upload, deps, config) run in-process. The
// serve command hosts the HTTP control API; status and cancel talk to it.
package main
