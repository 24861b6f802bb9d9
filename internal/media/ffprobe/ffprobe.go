package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"clipper/internal/services"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Duration     string            `json:"duration"`
	BitRate      string            `json:"bit_rate"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	RFrameRate   string            `json:"r_frame_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	SampleRate   string            `json:"sample_rate"`
	Channels     int               `json:"channels"`
	Tags         map[string]string `json:"tags"`
	Disposition  map[string]int    `json:"disposition"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// ProbeFunc matches Inspect so callers can substitute cached or fake probes.
type ProbeFunc func(ctx context.Context, binary, path string) (Result, error)

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) && ctx.Err() == nil {
			return Result{}, services.Wrap(services.ErrExternalTool, "probe", "ffprobe", "launch failed", err)
		}
		return Result{}, services.Wrap(services.ErrValidation, "probe", "ffprobe", strings.TrimSpace(stderr.String()), err)
	}
	return Parse(output)
}

// Parse decodes an ffprobe JSON document. It is exported so callers holding
// cached output can rebuild a Result without running ffprobe.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "probe", "parse", "invalid ffprobe json", err)
	}
	result.raw = append([]byte(nil), data...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// StreamsOfType returns streams whose codec_type matches kind ("video",
// "audio", "subtitle") in container order.
func (r Result) StreamsOfType(kind string) []Stream {
	var out []Stream
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			out = append(out, stream)
		}
	}
	return out
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return len(r.StreamsOfType("video"))
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return len(r.StreamsOfType("audio"))
}

// SubtitleStreamCount returns the number of subtitle streams discovered.
func (r Result) SubtitleStreamCount() int {
	return len(r.StreamsOfType("subtitle"))
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
// Falls back to the longest stream duration when the container omits one.
func (r Result) DurationSeconds() float64 {
	if value := parseFloat(r.Format.Duration); value != 0 {
		return value
	}
	longest := 0.0
	for _, stream := range r.Streams {
		if d := parseFloat(stream.Duration); !math.IsNaN(d) && d > longest {
			longest = d
		}
	}
	return longest
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// Language returns the stream's language tag or "und".
func (s Stream) Language() string {
	if lang := strings.TrimSpace(s.Tags["language"]); lang != "" {
		return lang
	}
	return "und"
}

// Title returns the stream's title tag.
func (s Stream) Title() string {
	return strings.TrimSpace(s.Tags["title"])
}

// FrameRate returns r_frame_rate (falling back to avg_frame_rate) in frames
// per second, or 0 when neither parses.
func (s Stream) FrameRate() float64 {
	if rate := ParseRate(s.RFrameRate); rate > 0 {
		return rate
	}
	return ParseRate(s.AvgFrameRate)
}

// ParseRate converts an ffprobe rational ("30000/1001") or decimal rate.
func ParseRate(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	num, den, found := strings.Cut(value, "/")
	if !found {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return 0
		}
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 || n < 0 {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

// String renders a compact summary used in debug logs.
func (s Stream) String() string {
	return fmt.Sprintf("#%d %s/%s %s", s.Index, s.CodecType, s.CodecName, s.Language())
}
