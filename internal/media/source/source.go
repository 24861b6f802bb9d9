package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipper/internal/media/ffprobe"
	"clipper/internal/services"
	"clipper/internal/textutil"
)

// supportedExtensions lists containers the selector offers by default. Other
// files are still accepted when ffprobe recognises them.
var supportedExtensions = []string{".mp4", ".webm", ".mkv", ".avi", ".mov", ".wmv", ".flv"}

// Track identifies one audio or subtitle stream.
type Track struct {
	// Ordinal is the position among streams of the same kind (0:a:N / si=N).
	Ordinal int `json:"ordinal"`
	// StreamIndex is the absolute container stream index.
	StreamIndex int    `json:"stream_index"`
	Codec       string `json:"codec"`
	Language    string `json:"language"`
	Title       string `json:"title,omitempty"`
	Channels    int    `json:"channels,omitempty"`
}

// Label renders a human readable track description.
func (t Track) Label() string {
	parts := []string{fmt.Sprintf("#%d", t.Ordinal), textutil.LanguageName(t.Language)}
	if t.Codec != "" {
		parts = append(parts, t.Codec)
	}
	if t.Title != "" {
		parts = append(parts, fmt.Sprintf("%q", t.Title))
	}
	return strings.Join(parts, " ")
}

// ImageBased reports whether the track is a bitmap subtitle format that the
// subtitles filter cannot render.
func (t Track) ImageBased() bool {
	switch strings.ToLower(t.Codec) {
	case "hdmv_pgs_subtitle", "pgssub", "dvd_subtitle", "dvdsub", "dvb_subtitle", "xsub":
		return true
	default:
		return false
	}
}

// MediaSource is the immutable description of a selected input file.
type MediaSource struct {
	Path            string  `json:"path"`
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	FrameRate       float64 `json:"frame_rate"`
	VideoCodec      string  `json:"video_codec"`
	SizeBytes       int64   `json:"size_bytes"`
	Audio           []Track `json:"audio"`
	Subtitles       []Track `json:"subtitles"`
}

// Duration returns the probed duration.
func (m *MediaSource) Duration() time.Duration {
	return time.Duration(m.DurationSeconds * float64(time.Second))
}

// HasGeometry reports whether the video stream's dimensions are known.
func (m *MediaSource) HasGeometry() bool {
	return m.Width > 0 && m.Height > 0
}

// AudioTrack returns the audio track with the given ordinal.
func (m *MediaSource) AudioTrack(ordinal int) (Track, bool) {
	if ordinal < 0 || ordinal >= len(m.Audio) {
		return Track{}, false
	}
	return m.Audio[ordinal], true
}

// SubtitleTrack returns the subtitle track with the given ordinal.
func (m *MediaSource) SubtitleTrack(ordinal int) (Track, bool) {
	if ordinal < 0 || ordinal >= len(m.Subtitles) {
		return Track{}, false
	}
	return m.Subtitles[ordinal], true
}

// SupportedExtension reports whether path has one of the common video extensions.
func SupportedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range supportedExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// Load probes path and builds a MediaSource. Every failure is marked
// services.ErrValidation (the input is unusable) except a missing probe
// binary, which keeps services.ErrExternalTool.
func Load(ctx context.Context, probe ffprobe.ProbeFunc, binary, path string) (*MediaSource, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "source", "select", "no input file", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "source", "resolve path", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrValidation, "source", "stat", "No such file: "+abs, err)
		}
		return nil, services.Wrap(services.ErrValidation, "source", "stat", abs, err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "source", "stat", abs+" is a directory", nil)
	}

	if probe == nil {
		probe = ffprobe.Inspect
	}
	result, err := probe(ctx, binary, abs)
	if err != nil {
		if errors.Is(err, services.ErrExternalTool) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrValidation, "source", "probe", abs, err)
	}
	return FromProbe(abs, info.Size(), result)
}

// FromProbe converts an ffprobe result into a MediaSource.
func FromProbe(path string, size int64, result ffprobe.Result) (*MediaSource, error) {
	duration := result.DurationSeconds()
	if math.IsNaN(duration) || duration <= 0 {
		return nil, services.Wrap(services.ErrValidation, "source", "probe", "media has no usable duration", nil)
	}
	videos := result.StreamsOfType("video")
	if len(videos) == 0 {
		return nil, services.Wrap(services.ErrValidation, "source", "probe", "media has no video stream", nil)
	}

	video := videos[0]
	src := &MediaSource{
		Path:            path,
		DurationSeconds: duration,
		Width:           video.Width,
		Height:          video.Height,
		FrameRate:       video.FrameRate(),
		VideoCodec:      video.CodecName,
		SizeBytes:       size,
	}
	for i, stream := range result.StreamsOfType("audio") {
		src.Audio = append(src.Audio, trackFromStream(i, stream))
	}
	for i, stream := range result.StreamsOfType("subtitle") {
		src.Subtitles = append(src.Subtitles, trackFromStream(i, stream))
	}
	return src, nil
}

func trackFromStream(ordinal int, stream ffprobe.Stream) Track {
	return Track{
		Ordinal:     ordinal,
		StreamIndex: stream.Index,
		Codec:       stream.CodecName,
		Language:    stream.Language(),
		Title:       stream.Title(),
		Channels:    stream.Channels,
	}
}
