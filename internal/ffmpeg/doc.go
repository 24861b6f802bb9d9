// Package ffmpeg turns a MediaSource, TrimRange and EncodingParameters into an
// ffmpeg CommandLine.
//
// Build is a pure mapping: it reads no files and launches nothing, so the
// produced argument vector can be asserted on directly in tests. A
// BuildError means a caller skipped validation; params.Resolve and
// timerange.Compute already reject every user-reachable bad input.
//
// Output naming lives alongside the builder. OutputName is pure as well;
// PathReserver adds the " (N)" disambiguation against existing files and
// paths held by jobs that have not finished yet.
package ffmpeg
