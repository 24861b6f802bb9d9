// Package config loads, normalizes, and validates Clipper's TOML
// configuration.
//
// It locates the config file (~/.config/clipper/config.toml, then
// ./clipper.toml), applies defaults, expands ~ in paths, honours the
// CLIPPER_FFMPEG, CLIPPER_FFPROBE and CLIPPER_API_TOKEN overrides, and exposes
// typed accessors for durations the supervisor and upload adapter consume.
package config
