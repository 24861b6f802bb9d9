package params

import (
	"fmt"
	"strconv"
)

// Codec is the output video codec.
type Codec string

const (
	CodecH264 Codec = "h264"
	CodecH265 Codec = "h265"
	CodecVP9  Codec = "vp9"
)

// Encoder returns the ffmpeg encoder name.
func (c Codec) Encoder() string {
	switch c {
	case CodecH265:
		return "libx265"
	case CodecVP9:
		return "libvpx-vp9"
	default:
		return "libx264"
	}
}

// MaxCRF is the highest quality value the encoder accepts.
func (c Codec) MaxCRF() int {
	if c == CodecVP9 {
		return 63
	}
	return 51
}

// Container is the output wrapper format.
type Container string

const (
	ContainerMP4  Container = "mp4"
	ContainerMKV  Container = "mkv"
	ContainerWEBM Container = "webm"
)

// Extension returns the file extension including the leading dot.
func (c Container) Extension() string {
	return "." + string(c)
}

// Supports reports whether the container can carry codec.
func (c Container) Supports(codec Codec) bool {
	switch c {
	case ContainerMP4:
		return codec == CodecH264 || codec == CodecH265
	case ContainerWEBM:
		return codec == CodecVP9
	case ContainerMKV:
		return true
	default:
		return false
	}
}

// AudioEncoder returns the audio encoder the container expects.
func (c Container) AudioEncoder() string {
	if c == ContainerWEBM {
		return "libopus"
	}
	return "aac"
}

// BurnsSubtitles reports whether a selected subtitle track must be rendered
// into the picture because the container cannot carry it as a stream.
func (c Container) BurnsSubtitles() bool {
	return c != ContainerMKV
}

// Preset is the encoder speed/efficiency trade-off.
type Preset string

const (
	PresetVeryFast Preset = "veryfast"
	PresetFast     Preset = "fast"
	PresetMedium   Preset = "medium"
	PresetSlow     Preset = "slow"
	PresetVerySlow Preset = "veryslow"
)

// VP9CPUUsed maps the x264-style preset onto libvpx's -cpu-used scale.
func (p Preset) VP9CPUUsed() int {
	switch p {
	case PresetVeryFast:
		return 5
	case PresetFast:
		return 4
	case PresetSlow:
		return 1
	case PresetVerySlow:
		return 0
	default:
		return 2
	}
}

// AudioNone disables audio entirely.
const AudioNone = "none"

// AudioBitrate is either a kbps value or disabled.
type AudioBitrate struct {
	Kbps     int
	Disabled bool
}

// String renders the ffmpeg form ("128k") or "none".
func (a AudioBitrate) String() string {
	if a.Disabled {
		return AudioNone
	}
	return strconv.Itoa(a.Kbps) + "k"
}

// Resolution is either an explicit frame size or the source geometry.
type Resolution struct {
	Width  int
	Height int
	Source bool
}

// String renders "WIDTHxHEIGHT" or "source".
func (r Resolution) String() string {
	if r.Source {
		return "source"
	}
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// EncodingParameters is the validated, canonical parameter set handed to the
// command builder.
type EncodingParameters struct {
	Codec        Codec
	CRF          int
	FPS          float64
	AudioBitrate AudioBitrate
	Container    Container
	Resolution   Resolution
	Speed        float64
	Preset       Preset
	// AudioTrack and SubtitleTrack are ordinals within their stream kind; nil
	// selects the first audio track and no subtitles respectively.
	AudioTrack    *int
	SubtitleTrack *int
}

// Raw converts parameters back into their textual option form.
func (p EncodingParameters) Raw() RawOptions {
	raw := RawOptions{
		Codec:        string(p.Codec),
		CRF:          strconv.Itoa(p.CRF),
		FPS:          strconv.FormatFloat(p.FPS, 'f', -1, 64),
		AudioBitrate: p.AudioBitrate.String(),
		Container:    string(p.Container),
		Resolution:   p.Resolution.String(),
		Speed:        strconv.FormatFloat(p.Speed, 'f', -1, 64),
		Preset:       string(p.Preset),
	}
	if p.AudioTrack != nil {
		raw.AudioTrack = strconv.Itoa(*p.AudioTrack)
	}
	if p.SubtitleTrack != nil {
		raw.SubtitleTrack = strconv.Itoa(*p.SubtitleTrack)
	}
	return raw
}

// RawOptions carries user-entered option text. Empty fields fall back to
// defaults during resolution.
type RawOptions struct {
	Codec         string `json:"codec,omitempty"`
	CRF           string `json:"crf,omitempty"`
	FPS           string `json:"fps,omitempty"`
	AudioBitrate  string `json:"audio_bitrate,omitempty"`
	RemoveAudio   bool   `json:"remove_audio,omitempty"`
	Container     string `json:"container,omitempty"`
	Resolution    string `json:"resolution,omitempty"`
	Speed         string `json:"speed,omitempty"`
	Preset        string `json:"preset,omitempty"`
	AudioTrack    string `json:"audio_track,omitempty"`
	SubtitleTrack string `json:"subtitle_track,omitempty"`
}

// Merge fills empty fields of r from fallback.
func (r RawOptions) Merge(fallback RawOptions) RawOptions {
	pick := func(value, alt string) string {
		if value != "" {
			return value
		}
		return alt
	}
	return RawOptions{
		Codec:         pick(r.Codec, fallback.Codec),
		CRF:           pick(r.CRF, fallback.CRF),
		FPS:           pick(r.FPS, fallback.FPS),
		AudioBitrate:  pick(r.AudioBitrate, fallback.AudioBitrate),
		RemoveAudio:   r.RemoveAudio || fallback.RemoveAudio,
		Container:     pick(r.Container, fallback.Container),
		Resolution:    pick(r.Resolution, fallback.Resolution),
		Speed:         pick(r.Speed, fallback.Speed),
		Preset:        pick(r.Preset, fallback.Preset),
		AudioTrack:    pick(r.AudioTrack, fallback.AudioTrack),
		SubtitleTrack: pick(r.SubtitleTrack, fallback.SubtitleTrack),
	}
}
