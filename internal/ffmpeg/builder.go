package ffmpeg

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipper/internal/media/source"
	"clipper/internal/params"
	"clipper/internal/timerange"
)

// DefaultBinary is used when Options.Binary is empty.
const DefaultBinary = "ffmpeg"

// fpsTolerance treats frame rates this close as equal when eliding filters.
const fpsTolerance = 0.01

// BuildError reports a violated internal invariant. Parameters that passed
// params.Resolve should never produce one.
type BuildError struct {
	Reason string
}

func (e *BuildError) Error() string {
	return "build ffmpeg command: " + e.Reason
}

func buildErr(format string, args ...any) *BuildError {
	return &BuildError{Reason: fmt.Sprintf(format, args...)}
}

// Options controls invocation details that are not encoding parameters.
type Options struct {
	Binary     string
	OutputPath string
	// Progress adds "-progress pipe:2" so key=value progress blocks are
	// interleaved with the regular stderr log.
	Progress bool
}

// CommandLine is an inspectable ffmpeg invocation.
type CommandLine struct {
	Binary     string
	Args       []string
	InputPath  string
	OutputPath string
	// Expected is the output duration used as the progress denominator.
	Expected time.Duration
}

// Argv returns the binary followed by its arguments.
func (c CommandLine) Argv() []string {
	argv := make([]string, 0, len(c.Args)+1)
	argv = append(argv, c.Binary)
	return append(argv, c.Args...)
}

// String renders the command for logs with shell-style quoting.
func (c CommandLine) String() string {
	parts := c.Argv()
	for i, part := range parts {
		parts[i] = shellQuote(part)
	}
	return strings.Join(parts, " ")
}

// Build constructs the ffmpeg arguments for one clip. It performs no I/O.
//
// Argument order:
//
//	-hide_banner -nostdin -y [-progress pipe:2]
//	[-ss START -t LENGTH] -i INPUT
//	-map 0:v:0 [-vf ...]
//	[-map 0:a:N -filter:a ... -c:a ... -b:a ...] | -an
//	[-map 0:s:N -c:s copy] | -sn
//	-c:v ... [codec options] [container options]
//	OUTPUT
func Build(src *source.MediaSource, trim timerange.TrimRange, p params.EncodingParameters, opts Options) (CommandLine, error) {
	if err := check(src, trim, p, opts); err != nil {
		return CommandLine{}, err
	}

	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = DefaultBinary
	}

	args := make([]string, 0, 48)
	args = append(args, "-hide_banner", "-nostdin", "-y")
	if opts.Progress {
		args = append(args, "-progress", "pipe:2")
	}

	// Input seeking with a bounded read keeps -t in source time, so speed
	// filters downstream do not shorten the selected window.
	length := trim.Length()
	if trim.Enabled {
		args = append(args, "-ss", seconds(trim.Start), "-t", seconds(length))
	} else {
		length = src.Duration()
	}
	args = append(args, "-i", src.Path)

	args = append(args, "-map", "0:v:0")
	if vf := videoFilters(src, trim, p); vf != "" {
		args = append(args, "-vf", vf)
	}

	args = appendAudio(args, src, p)
	args = appendSubtitles(args, p)
	args = appendVideoCodec(args, p)
	args = appendContainer(args, p)
	args = append(args, opts.OutputPath)

	return CommandLine{
		Binary:     binary,
		Args:       args,
		InputPath:  src.Path,
		OutputPath: opts.OutputPath,
		Expected:   time.Duration(float64(length) / p.Speed),
	}, nil
}

func check(src *source.MediaSource, trim timerange.TrimRange, p params.EncodingParameters, opts Options) error {
	if src == nil || strings.TrimSpace(src.Path) == "" {
		return buildErr("no source")
	}
	switch p.Codec {
	case params.CodecH264, params.CodecH265, params.CodecVP9:
	default:
		return buildErr("unknown codec %q", p.Codec)
	}
	switch p.Container {
	case params.ContainerMP4, params.ContainerMKV, params.ContainerWEBM:
	default:
		return buildErr("unknown container %q", p.Container)
	}
	if !p.Container.Supports(p.Codec) {
		return buildErr("%s cannot carry %s", p.Container, p.Codec)
	}
	if p.CRF < 0 || p.CRF > p.Codec.MaxCRF() {
		return buildErr("crf %d outside codec range", p.CRF)
	}
	if !p.Resolution.Source && (p.Resolution.Width <= 0 || p.Resolution.Height <= 0) {
		return buildErr("resolution %s is neither source nor a valid size", p.Resolution)
	}
	if !(p.FPS > 0) || math.IsInf(p.FPS, 0) {
		return buildErr("fps %v is not positive", p.FPS)
	}
	if !(p.Speed > 0) || math.IsInf(p.Speed, 0) {
		return buildErr("speed %v is not positive", p.Speed)
	}
	if !p.AudioBitrate.Disabled && p.AudioBitrate.Kbps <= 0 {
		return buildErr("audio bitrate %s is not positive", p.AudioBitrate)
	}
	if trim.Enabled && (trim.Start < 0 || trim.Start >= trim.End) {
		return buildErr("trim range %s is empty", trim)
	}
	if !trim.Enabled && src.Duration() <= 0 {
		return buildErr("source duration unknown")
	}
	if p.AudioTrack != nil && !p.AudioBitrate.Disabled {
		if _, ok := src.AudioTrack(*p.AudioTrack); !ok {
			return buildErr("audio track %d not in source", *p.AudioTrack)
		}
	}
	if p.SubtitleTrack != nil {
		track, ok := src.SubtitleTrack(*p.SubtitleTrack)
		if !ok {
			return buildErr("subtitle track %d not in source", *p.SubtitleTrack)
		}
		if p.Container.BurnsSubtitles() && track.ImageBased() {
			return buildErr("subtitle track %d is image based and cannot be burned in", *p.SubtitleTrack)
		}
	}
	if strings.TrimSpace(opts.OutputPath) == "" {
		return buildErr("no output path")
	}
	if !strings.EqualFold(filepath.Ext(opts.OutputPath), p.Container.Extension()) {
		return buildErr("output %s does not match container %s", opts.OutputPath, p.Container)
	}
	if filepath.Clean(opts.OutputPath) == filepath.Clean(src.Path) {
		return buildErr("output would overwrite the source")
	}
	return nil
}

func videoFilters(src *source.MediaSource, trim timerange.TrimRange, p params.EncodingParameters) string {
	var filters []string

	if p.SubtitleTrack != nil && p.Container.BurnsSubtitles() {
		// The subtitles filter reads the file from its start, so shift the
		// seeked frames back onto source time while rendering.
		shift := trim.Enabled && trim.Start > 0
		if shift {
			filters = append(filters, "setpts=PTS+"+seconds(trim.Start)+"/TB")
		}
		filters = append(filters, fmt.Sprintf("subtitles='%s':si=%d", EscapeFilterPath(src.Path), *p.SubtitleTrack))
		if shift {
			filters = append(filters, "setpts=PTS-STARTPTS")
		}
	}

	if !p.Resolution.Source && !(p.Resolution.Width == src.Width && p.Resolution.Height == src.Height) {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", p.Resolution.Width, p.Resolution.Height))
	}

	if p.Speed != 1 {
		filters = append(filters, "setpts=PTS/"+formatFloat(p.Speed))
	}

	if p.Speed != 1 || src.FrameRate <= 0 || math.Abs(src.FrameRate-p.FPS) > fpsTolerance {
		filters = append(filters, "fps="+formatFloat(p.FPS))
	}

	return strings.Join(filters, ",")
}

func appendAudio(args []string, src *source.MediaSource, p params.EncodingParameters) []string {
	if p.AudioBitrate.Disabled || len(src.Audio) == 0 {
		return append(args, "-an")
	}
	ordinal := 0
	if p.AudioTrack != nil {
		ordinal = *p.AudioTrack
	}
	args = append(args, "-map", fmt.Sprintf("0:a:%d", ordinal))
	if p.Speed != 1 {
		args = append(args, "-filter:a", AtempoChain(p.Speed))
	}
	return append(args,
		"-c:a", p.Container.AudioEncoder(),
		"-b:a", p.AudioBitrate.String(),
	)
}

func appendSubtitles(args []string, p params.EncodingParameters) []string {
	if p.SubtitleTrack != nil && !p.Container.BurnsSubtitles() {
		return append(args, "-map", fmt.Sprintf("0:s:%d", *p.SubtitleTrack), "-c:s", "copy")
	}
	return append(args, "-sn")
}

func appendVideoCodec(args []string, p params.EncodingParameters) []string {
	args = append(args, "-c:v", p.Codec.Encoder(), "-crf", strconv.Itoa(p.CRF))
	switch p.Codec {
	case params.CodecVP9:
		args = append(args,
			"-b:v", "0",
			"-deadline", "good",
			"-cpu-used", strconv.Itoa(p.Preset.VP9CPUUsed()),
			"-row-mt", "1",
		)
	default:
		args = append(args, "-preset", string(p.Preset))
	}
	args = append(args, "-pix_fmt", "yuv420p")
	if p.Codec == params.CodecH265 && p.Container == params.ContainerMP4 {
		args = append(args, "-tag:v", "hvc1")
	}
	return args
}

func appendContainer(args []string, p params.EncodingParameters) []string {
	if p.Container == params.ContainerMP4 {
		args = append(args, "-movflags", "+faststart")
	}
	return args
}

// AtempoChain expresses speed as a chain of atempo filters, each within the
// filter's accepted [0.5, 2.0] range.
func AtempoChain(speed float64) string {
	var parts []string
	for speed > 2.0 {
		parts = append(parts, "atempo=2.0")
		speed /= 2.0
	}
	for speed < 0.5 {
		parts = append(parts, "atempo=0.5")
		speed /= 0.5
	}
	if len(parts) == 0 || math.Abs(speed-1) > 1e-9 {
		parts = append(parts, "atempo="+tempoFactor(speed))
	}
	return strings.Join(parts, ",")
}

func tempoFactor(v float64) string {
	out := formatFloat(math.Round(v*1e6) / 1e6)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}

// EscapeFilterPath prepares a path for use inside a single-quoted filter
// option value.
func EscapeFilterPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.ToSlash(path)
	path = strings.ReplaceAll(path, `\`, `/`)
	path = strings.ReplaceAll(path, ":", `\:`)
	return strings.ReplaceAll(path, "'", `'\''`)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`!*?[]{}()<>|&;#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
