// Package ffprobe runs ffprobe and decodes its JSON stream and format report.
package ffprobe
