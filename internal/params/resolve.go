package params

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Bounds applied to free-text options.
const (
	MinFPS          = 1
	MaxFPS          = 240
	MinAudioKbps    = 8
	MaxAudioKbps    = 512
	MinWidth        = 16
	MaxWidth        = 7680
	MinHeight       = 16
	MaxHeight       = 4320
	MinSpeed        = 0.1
	MaxSpeed        = 16
	MaxTrackOrdinal = 99
)

var resolutionPattern = regexp.MustCompile(`^(\d{2,5})\s*[xX×]\s*(\d{2,5})$`)

// Defaults returns the built-in parameter set used for empty fields.
func Defaults() EncodingParameters {
	return EncodingParameters{
		Codec:        CodecH264,
		CRF:          20,
		FPS:          120,
		AudioBitrate: AudioBitrate{Kbps: 128},
		Container:    ContainerMP4,
		Resolution:   Resolution{Width: 1920, Height: 1080},
		Speed:        1.0,
		Preset:       PresetMedium,
	}
}

// Resolve validates raw option text and returns canonical parameters. It is
// pure: the same input always yields the same output. The first failing field
// in declaration order is reported, followed by cross-field checks.
func Resolve(raw RawOptions) (EncodingParameters, error) {
	out := Defaults()
	var err error

	if out.Codec, err = parseCodec(raw.Codec, out.Codec); err != nil {
		return EncodingParameters{}, err
	}
	if out.CRF, err = parseCRF(raw.CRF, out.CRF, out.Codec); err != nil {
		return EncodingParameters{}, err
	}
	if out.FPS, err = parseFPS(raw.FPS, out.FPS); err != nil {
		return EncodingParameters{}, err
	}
	if raw.RemoveAudio {
		out.AudioBitrate = AudioBitrate{Disabled: true}
	} else if out.AudioBitrate, err = parseAudioBitrate(raw.AudioBitrate, out.AudioBitrate); err != nil {
		return EncodingParameters{}, err
	}
	if out.Container, err = parseContainer(raw.Container, out.Container); err != nil {
		return EncodingParameters{}, err
	}
	if out.Resolution, err = parseResolution(raw.Resolution, out.Resolution); err != nil {
		return EncodingParameters{}, err
	}
	if out.Speed, err = parseSpeed(raw.Speed, out.Speed); err != nil {
		return EncodingParameters{}, err
	}
	if out.Preset, err = parsePreset(raw.Preset, out.Preset); err != nil {
		return EncodingParameters{}, err
	}
	if out.AudioTrack, err = parseTrack(FieldAudioTrack, raw.AudioTrack); err != nil {
		return EncodingParameters{}, err
	}
	if out.SubtitleTrack, err = parseTrack(FieldSubtitleTrack, raw.SubtitleTrack); err != nil {
		return EncodingParameters{}, err
	}

	if !out.Container.Supports(out.Codec) {
		return EncodingParameters{}, invalid(FieldContainer, "%s cannot carry %s video", out.Container, out.Codec)
	}
	return out, nil
}

// ValidateTracks checks track ordinals against the streams a source offers.
func ValidateTracks(p EncodingParameters, audioTracks, subtitleTracks int) error {
	if p.AudioTrack != nil && *p.AudioTrack >= audioTracks {
		return invalid(FieldAudioTrack, "track %d not present (source has %d)", *p.AudioTrack, audioTracks)
	}
	if p.SubtitleTrack != nil && *p.SubtitleTrack >= subtitleTracks {
		return invalid(FieldSubtitleTrack, "track %d not present (source has %d)", *p.SubtitleTrack, subtitleTracks)
	}
	return nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func parseCodec(value string, fallback Codec) (Codec, error) {
	switch normalize(value) {
	case "":
		return fallback, nil
	case "h264", "h.264", "x264", "libx264", "avc":
		return CodecH264, nil
	case "h265", "h.265", "x265", "libx265", "hevc":
		return CodecH265, nil
	case "vp9", "libvpx-vp9":
		return CodecVP9, nil
	default:
		return "", invalid(FieldCodec, "unsupported codec %q (want h264, h265 or vp9)", strings.TrimSpace(value))
	}
}

func parseCRF(value string, fallback int, codec Codec) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	crf, err := strconv.Atoi(value)
	if err != nil {
		return 0, invalid(FieldCRF, "%q is not an integer", value)
	}
	if crf < 0 || crf > codec.MaxCRF() {
		return 0, invalid(FieldCRF, "%d outside 0-%d for %s", crf, codec.MaxCRF(), codec)
	}
	return crf, nil
}

func parseFPS(value string, fallback float64) (float64, error) {
	value = strings.TrimSuffix(normalize(value), "fps")
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	fps, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return 0, invalid(FieldFPS, "%q is not a number", value)
	}
	if fps < MinFPS || fps > MaxFPS {
		return 0, invalid(FieldFPS, "%g outside %d-%d", fps, MinFPS, MaxFPS)
	}
	return fps, nil
}

func parseAudioBitrate(value string, fallback AudioBitrate) (AudioBitrate, error) {
	value = normalize(value)
	switch value {
	case "":
		return fallback, nil
	case AudioNone, "remove audio", "off":
		return AudioBitrate{Disabled: true}, nil
	}
	digits := strings.TrimSuffix(strings.TrimSuffix(value, "bps"), "k")
	kbps, err := strconv.Atoi(strings.TrimSpace(digits))
	if err != nil {
		return AudioBitrate{}, invalid(FieldAudioBitrate, "%q is not a bitrate (e.g. 128k or none)", value)
	}
	if kbps < MinAudioKbps || kbps > MaxAudioKbps {
		return AudioBitrate{}, invalid(FieldAudioBitrate, "%dk outside %dk-%dk", kbps, MinAudioKbps, MaxAudioKbps)
	}
	return AudioBitrate{Kbps: kbps}, nil
}

func parseContainer(value string, fallback Container) (Container, error) {
	switch strings.TrimPrefix(normalize(value), ".") {
	case "":
		return fallback, nil
	case "mp4":
		return ContainerMP4, nil
	case "mkv", "matroska":
		return ContainerMKV, nil
	case "webm":
		return ContainerWEBM, nil
	default:
		return "", invalid(FieldContainer, "unsupported container %q (want mp4, mkv or webm)", strings.TrimSpace(value))
	}
}

func parseResolution(value string, fallback Resolution) (Resolution, error) {
	value = normalize(value)
	switch value {
	case "":
		return fallback, nil
	case "source", "original":
		return Resolution{Source: true}, nil
	}
	m := resolutionPattern.FindStringSubmatch(value)
	if m == nil {
		return Resolution{}, invalid(FieldResolution, "%q is not WIDTHxHEIGHT", value)
	}
	width, _ := strconv.Atoi(m[1])
	height, _ := strconv.Atoi(m[2])
	if width < MinWidth || width > MaxWidth || height < MinHeight || height > MaxHeight {
		return Resolution{}, invalid(FieldResolution, "%dx%d outside %dx%d-%dx%d", width, height, MinWidth, MinHeight, MaxWidth, MaxHeight)
	}
	if width%2 != 0 || height%2 != 0 {
		return Resolution{}, invalid(FieldResolution, "%dx%d must have even dimensions", width, height)
	}
	return Resolution{Width: width, Height: height}, nil
}

func parseSpeed(value string, fallback float64) (float64, error) {
	value = normalize(value)
	value = strings.TrimSpace(strings.TrimSuffix(value, "(normal)"))
	value = strings.TrimSuffix(value, "x")
	if value == "" {
		return fallback, nil
	}
	speed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return 0, invalid(FieldSpeed, "%q is not a number", value)
	}
	if speed < MinSpeed || speed > MaxSpeed {
		return 0, invalid(FieldSpeed, "%g outside %g-%g", speed, MinSpeed, float64(MaxSpeed))
	}
	return speed, nil
}

func parsePreset(value string, fallback Preset) (Preset, error) {
	switch p := Preset(normalize(value)); p {
	case "":
		return fallback, nil
	case PresetVeryFast, PresetFast, PresetMedium, PresetSlow, PresetVerySlow:
		return p, nil
	default:
		return "", invalid(FieldPreset, "unsupported preset %q", strings.TrimSpace(value))
	}
}

func parseTrack(field, value string) (*int, error) {
	value = normalize(value)
	if value == "" || value == "default" || (field == FieldSubtitleTrack && value == AudioNone) {
		return nil, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 || n > MaxTrackOrdinal {
		return nil, invalid(field, "%q is not a track number", value)
	}
	return &n, nil
}
