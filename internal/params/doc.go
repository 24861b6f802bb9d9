// Package params resolves user-entered encoding options into a validated,
// strongly typed EncodingParameters value.
//
// Resolve is a pure function over RawOptions and the static validity tables
// defined here: enum membership for codec, container and preset, numeric
// domains for CRF, frame rate, audio bitrate and speed, and the WIDTHxHEIGHT
// form for custom resolutions. Cross-field rules (codec/container
// compatibility) run after every field validates on its own.
//
// State wraps Resolve with last-known-good semantics for interactive callers:
// a rejected edit returns a ValidationError and leaves the previous
// parameters untouched for redisplay.
package params
