// Package preflight verifies the environment before a job is submitted:
// output directory permissions and the presence of ffmpeg/ffprobe.
package preflight
