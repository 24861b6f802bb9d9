package ffprobe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"clipper/internal/services"
)

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001", "avg_frame_rate": "0/0"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2, "tags": {"language": "eng", "title": "Stereo"}},
    {"index": 2, "codec_name": "opus", "codec_type": "audio", "channels": 6, "tags": {"language": "jpn"}},
    {"index": 3, "codec_name": "ass", "codec_type": "subtitle", "tags": {"language": "eng"}},
    {"index": 4, "codec_name": "subrip", "codec_type": "subtitle"}
  ],
  "format": {"filename": "clip.mkv", "nb_streams": 5, "duration": "120.500000", "size": "1000", "bit_rate": "32000", "format_name": "matroska,webm"}
}`

func TestParseAndHelpers(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if result.VideoStreamCount() != 1 || result.AudioStreamCount() != 2 || result.SubtitleStreamCount() != 2 {
		t.Fatalf("unexpected stream counts: %d/%d/%d", result.VideoStreamCount(), result.AudioStreamCount(), result.SubtitleStreamCount())
	}
	if result.DurationSeconds() != 120.5 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	video := result.StreamsOfType("video")[0]
	if rate := video.FrameRate(); math.Abs(rate-29.97) > 0.01 {
		t.Fatalf("unexpected frame rate %v", rate)
	}
	audio := result.StreamsOfType("audio")
	if audio[0].Language() != "eng" || audio[0].Title() != "Stereo" {
		t.Fatalf("unexpected audio tags: %+v", audio[0])
	}
	subs := result.StreamsOfType("subtitle")
	if subs[1].Language() != "und" {
		t.Fatalf("expected und for untagged stream, got %q", subs[1].Language())
	}
	if string(result.RawJSON()) != sampleJSON {
		t.Fatal("expected raw JSON to be retained")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not json")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{{Duration: "10.0"}, {Duration: "12.5"}, {Duration: "bad"}},
	}
	if got := result.DurationSeconds(); got != 12.5 {
		t.Fatalf("expected longest stream duration, got %v", got)
	}
}

func TestDurationInvalidIsNaN(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestParseRate(t *testing.T) {
	cases := map[string]float64{
		"30/1":  30,
		"25":    25,
		"0/0":   0,
		"":      0,
		"x/y":   0,
		"-30/1": 0,
	}
	for in, want := range cases {
		if got := ParseRate(in); got != want {
			t.Errorf("ParseRate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInspectUsesBinary(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	body := "#!/bin/sh\ncat <<'JSON'\n" + sampleJSON + "\nJSON\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	result, err := Inspect(context.Background(), script, "/media/clip.mkv")
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("unexpected audio count %d", result.AudioStreamCount())
	}
}

func TestInspectFailureIsValidation(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	body := "#!/bin/sh\necho 'clip.mkv: No such file or directory' >&2\nexit 1\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := Inspect(context.Background(), script, "clip.mkv")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInspectMissingBinary(t *testing.T) {
	_, err := Inspect(context.Background(), filepath.Join(t.TempDir(), "nope"), "clip.mkv")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
