package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipper/internal/config"
	"clipper/internal/media/ffprobe"
	"clipper/internal/outcome"
	"clipper/internal/params"
	"clipper/internal/services"
	"clipper/internal/supervisor"
	"clipper/internal/testsupport"
	"clipper/internal/workflow"
)

func stubProbeResolver(*config.Config) (string, error) { return "ffprobe", nil }

func newManager(t *testing.T, cfg *config.Config, result ffprobe.Result, opts ...workflow.ManagerOption) *workflow.Manager {
	t.Helper()
	base := []workflow.ManagerOption{
		workflow.WithProbe(testsupport.StaticProbe(result)),
		workflow.WithToolResolvers(nil, stubProbeResolver),
	}
	mgr := workflow.NewManager(cfg, nil, append(base, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
	})
	return mgr
}

func writeSource(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(cfg), "media", name)
	testsupport.WriteFile(t, path, 1024)
	return path
}

func awaitOutcome(t *testing.T, mgr *workflow.Manager, sub *workflow.Submission) outcome.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	out, err := mgr.Await(ctx, sub)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	return out
}

func TestProcessProducesClip(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg())
	mgr := newManager(t, cfg, testsupport.ProbeResult(120, 1920, 1080, []string{"aac"}, nil))
	src := writeSource(t, cfg, "holiday.mkv")

	sub, err := mgr.Process(context.Background(), workflow.Request{Source: src, Start: "00:10", End: "00:20"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !sub.Launched() {
		t.Fatalf("expected a launched job, got early outcome")
	}
	out := awaitOutcome(t, mgr, sub)
	if out.Status != outcome.StatusSuccess {
		t.Fatalf("status = %s (%s)", out.Status, out.Summary())
	}
	want := filepath.Join(cfg.Paths.OutputDir, "holiday-00m10s-00m20s-1920x1080-h264.mp4")
	if out.Path != want {
		t.Fatalf("path = %q, want %q", out.Path, want)
	}
	if info, err := os.Stat(out.Path); err != nil || info.Size() == 0 {
		t.Fatalf("output missing or empty: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mgr.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	recorded, ok := mgr.Outcome(sub.JobID)
	if !ok || recorded.Status != outcome.StatusSuccess {
		t.Fatalf("recorded outcome = %+v, %v", recorded, ok)
	}
	logs, _ := filepath.Glob(filepath.Join(cfg.Paths.LogDir, "jobs", "*.log"))
	if len(logs) != 1 {
		t.Fatalf("job logs = %v", logs)
	}
	data, _ := os.ReadFile(logs[0])
	if !strings.Contains(string(data), "state: succeeded") || !strings.Contains(string(data), want) {
		t.Fatalf("job log missing job details:\n%s", data)
	}

	status := mgr.Status()
	if status.Busy || status.Job == nil || status.Job.State != supervisor.StateSucceeded {
		t.Fatalf("status = %+v", status)
	}
}

func TestProcessDisambiguatesExistingOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg())
	mgr := newManager(t, cfg, testsupport.ProbeResult(60, 1280, 720, nil, nil))
	src := writeSource(t, cfg, "talk.mp4")
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.OutputDir, "talk-1920x1080-h264.mp4"), 10)

	sub, err := mgr.Process(context.Background(), workflow.Request{Source: src})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	out := awaitOutcome(t, mgr, sub)
	if filepath.Base(out.Path) != "talk-1920x1080-h264 (2).mp4" {
		t.Fatalf("path = %q", out.Path)
	}
}

func TestProcessRejectsInvalidOptions(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg())
	mgr := newManager(t, cfg, testsupport.ProbeResult(60, 1920, 1080, []string{"aac"}, nil))
	src := writeSource(t, cfg, "a.mkv")

	_, err := mgr.Process(context.Background(), workflow.Request{
		Source:  src,
		Options: params.RawOptions{Codec: "vp9", Container: "mp4"},
	})
	var verr *params.ValidationError
	if !errors.As(err, &verr) || verr.Field != params.FieldContainer {
		t.Fatalf("err = %v, want container validation error", err)
	}
	if _, ok := mgr.Supervisor().Latest(); ok {
		t.Fatal("validation failure must not start a job")
	}
	if got := mgr.Params(); got.Codec != params.CodecH264 {
		t.Fatalf("last-known-good codec = %s", got.Codec)
	}
}

func TestProcessRejectsMalformedTime(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg())
	mgr := newManager(t, cfg, testsupport.ProbeResult(60, 1920, 1080, nil, nil))
	src := writeSource(t, cfg, "a.mkv")

	_, err := mgr.Process(context.Background(), workflow.Request{Source: src, Start: "1:xx"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestProcessRejectsImageSubtitleBurnIn(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg())
	mgr := newManager(t, cfg, testsupport.ProbeResult(60, 1920, 1080, []string{"aac"}, []string{"hdmv_pgs_subtitle"}))
	src := writeSource(t, cfg, "movie.mkv")

	_, err := mgr.Process(context.Background(), workflow.Request{
		Source:  src,
		Options: params.RawOptions{SubtitleTrack: "0"},
	})
	var verr *params.ValidationError
	if !errors.As(err, &verr) || verr.Field != params.FieldSubtitleTrack {
		t.Fatalf("err = %v, want subtitle_track validation error", err)
	}
}

func TestProcessMissingEncoderFailsBeforeLaunch(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMissingTools())
	mgr := newManager(t, cfg, testsupport.ProbeResult(60, 1920, 1080, nil, nil))
	src := writeSource(t, cfg, "a.mkv")

	sub, err := mgr.Process(context.Background(), workflow.Request{Source: src})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if sub.Launched() {
		t.Fatal("encoder should not be launched")
	}
	out := awaitOutcome(t, mgr, sub)
	if out.Status != outcome.StatusFailure || out.Kind != outcome.KindMissingTool {
		t.Fatalf("outcome = %+v", out)
	}
	entries, _ := os.ReadDir(cfg.Paths.OutputDir)
	if len(entries) != 0 {
		t.Fatalf("output dir not empty: %v", entries)
	}
}

func TestProcessProbeFailureIsInvalidInput(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg())
	failing := func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("Invalid data found when processing input")
	}
	mgr := newManager(t, cfg, ffprobe.Result{}, workflow.WithProbe(failing))
	src := writeSource(t, cfg, "broken.mkv")

	sub, err := mgr.Process(context.Background(), workflow.Request{Source: src})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	out := awaitOutcome(t, mgr, sub)
	if out.Kind != outcome.KindInvalidInput {
		t.Fatalf("kind = %s, want InvalidInput", out.Kind)
	}
	if _, ok := mgr.Outcome(sub.JobID); !ok {
		t.Fatal("early outcome should be recorded")
	}
}

func TestProcessUnwritableOutputDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg())
	mgr := newManager(t, cfg, testsupport.ProbeResult(60, 1920, 1080, nil, nil))
	src := writeSource(t, cfg, "a.mkv")
	locked := filepath.Join(testsupport.BaseDir(cfg), "locked")
	if err := os.Mkdir(locked, 0o500); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	sub, err := mgr.Process(context.Background(), workflow.Request{Source: src, OutputDir: locked})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	out := awaitOutcome(t, mgr, sub)
	if out.Kind != outcome.KindPermissionDenied {
		t.Fatalf("kind = %s, want PermissionDenied", out.Kind)
	}
}

func TestProcessEncoderFailureClassified(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubBinary("ffmpeg", testsupport.FFmpegFailureScript))
	mgr := newManager(t, cfg, testsupport.ProbeResult(60, 1920, 1080, nil, nil))
	src := writeSource(t, cfg, "a.mkv")

	sub, err := mgr.Process(context.Background(), workflow.Request{Source: src})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	out := awaitOutcome(t, mgr, sub)
	if out.Status != outcome.StatusFailure || out.Kind != outcome.KindInvalidInput {
		t.Fatalf("outcome = %+v", out)
	}
	if _, err := os.Stat(sub.Command.OutputPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("output should not exist: %v", err)
	}
}

func TestBusyAndCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubBinary("ffmpeg", testsupport.FFmpegSlowScript))
	mgr := newManager(t, cfg, testsupport.ProbeResult(60, 1920, 1080, nil, nil))
	src := writeSource(t, cfg, "a.mkv")

	sub, err := mgr.Process(context.Background(), workflow.Request{Source: src})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	_, err = mgr.Process(context.Background(), workflow.Request{})
	var busy *supervisor.BusyError
	if !errors.As(err, &busy) || busy.JobID != sub.JobID {
		t.Fatalf("second Process err = %v, want BusyError", err)
	}

	if err := mgr.Cancel(sub.JobID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	out := awaitOutcome(t, mgr, sub)
	if out.Status != outcome.StatusCancelled {
		t.Fatalf("status = %s", out.Status)
	}
	if _, err := os.Stat(sub.Command.OutputPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("partial output should be removed: %v", err)
	}
}

func TestProcessReusesSelectedSource(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg())
	mgr := newManager(t, cfg, testsupport.ProbeResult(30, 1920, 1080, nil, nil))

	if _, err := mgr.Process(context.Background(), workflow.Request{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error without a source", err)
	}

	src := writeSource(t, cfg, "clip.mkv")
	if _, err := mgr.Select(context.Background(), src); err != nil {
		t.Fatalf("Select: %v", err)
	}
	sub, err := mgr.Process(context.Background(), workflow.Request{End: "00:05"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if sub.Source.Path != src {
		t.Fatalf("source = %q", sub.Source.Path)
	}
	if sub.Trim.Start != 0 || sub.Trim.End != 5*time.Second {
		t.Fatalf("trim = %+v", sub.Trim)
	}
	awaitOutcome(t, mgr, sub)
}

func TestProcessDoesNotInheritPreviousOptions(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg())
	withSubs := testsupport.ProbeResult(60, 1920, 1080, []string{"aac"}, []string{"subrip"})
	plain := testsupport.ProbeResult(60, 1920, 1080, []string{"aac"}, nil)
	first := writeSource(t, cfg, "a.mkv")
	second := writeSource(t, cfg, "b.mkv")
	probe := func(_ context.Context, _, path string) (ffprobe.Result, error) {
		if path == first {
			return withSubs, nil
		}
		return plain, nil
	}
	mgr := newManager(t, cfg, plain, workflow.WithProbe(probe))

	sub, err := mgr.Process(context.Background(), workflow.Request{
		Source:  first,
		Options: params.RawOptions{RemoveAudio: true, SubtitleTrack: "0", Container: "mkv"},
	})
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}
	awaitOutcome(t, mgr, sub)
	if got := mgr.Params(); got.Container != params.ContainerMKV {
		t.Fatalf("last-known-good container = %s", got.Container)
	}

	sub, err = mgr.Process(context.Background(), workflow.Request{Source: second})
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	argv := sub.Command.Argv()
	for _, arg := range argv {
		if arg == "-an" {
			t.Fatalf("second job inherited -an: %q", argv)
		}
	}
	if !strings.HasSuffix(sub.Command.OutputPath, ".mp4") {
		t.Fatalf("second job output = %q, want configured mp4 container", sub.Command.OutputPath)
	}
	if sub.Params.SubtitleTrack != nil {
		t.Fatalf("second job inherited subtitle track %d", *sub.Params.SubtitleTrack)
	}
	awaitOutcome(t, mgr, sub)
}

func TestProcessRejectsAudioTrackOnSilentSource(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg())
	mgr := newManager(t, cfg, testsupport.ProbeResult(60, 1920, 1080, nil, nil))
	src := writeSource(t, cfg, "silent.mkv")

	_, err := mgr.Process(context.Background(), workflow.Request{
		Source:  src,
		Options: params.RawOptions{AudioTrack: "0"},
	})
	var verr *params.ValidationError
	if !errors.As(err, &verr) || verr.Field != params.FieldAudioTrack {
		t.Fatalf("err = %v, want audio_track validation error", err)
	}
}
