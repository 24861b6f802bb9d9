package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipper/internal/config"
	"clipper/internal/daemon"
	"clipper/internal/testsupport"
	"clipper/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CLIPPER_FFMPEG", "")
	t.Setenv("CLIPPER_FFPROBE", "")
	t.Setenv("CLIPPER_API_TOKEN", "")

	cfg := testsupport.NewConfig(t, opts...)
	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(configPath, []byte(encoded), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func (e *cliTestEnv) source(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(e.cfg), "media", name)
	testsupport.WriteFile(t, path, 2048)
	return path
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if env != nil {
		args = append([]string{"--config", env.configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestConfigInitShowValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, env, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "paths.output_dir")
	requireContains(t, out, env.cfg.Paths.OutputDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, nil, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, nil, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestDepsReportsTools(t *testing.T) {
	env := setupCLITestEnv(t,
		testsupport.WithStubBinary("ffmpeg", "#!/bin/sh\necho 'ffmpeg version 7.1-test'\n"),
		testsupport.WithStubBinary("ffprobe", "#!/bin/sh\necho 'ffprobe version 7.1-test'\n"),
	)

	out, _, err := runCLI(t, env, "deps")
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	requireContains(t, out, "ffmpeg version 7.1-test")
	requireContains(t, out, "ffprobe version 7.1-test")
}

func TestDepsFailsWhenToolsMissing(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithMissingTools())

	out, _, err := runCLI(t, env, "deps")
	if err == nil {
		t.Fatal("expected deps to fail")
	}
	requireContains(t, out, "missing")
}

func TestProbeRendersTracks(t *testing.T) {
	result := testsupport.ProbeResult(75, 1280, 720, []string{"aac"}, []string{"subrip"})
	env := setupCLITestEnv(t, testsupport.WithStubbedProbe(result))
	src := env.source(t, "lecture.mkv")

	out, _, err := runCLI(t, env, "probe", src)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	requireContains(t, out, "1280x720")
	requireContains(t, out, "aac")
	requireContains(t, out, "subrip")

	out, _, err = runCLI(t, env, "probe", "--json", src)
	if err != nil {
		t.Fatalf("probe --json: %v", err)
	}
	requireContains(t, out, `"durationSeconds": 75`)
}

func TestClipProducesOutput(t *testing.T) {
	result := testsupport.ProbeResult(60, 1920, 1080, []string{"aac"}, nil)
	env := setupCLITestEnv(t, testsupport.WithStubbedFFmpeg(), testsupport.WithStubbedProbe(result))
	src := env.source(t, "match.mkv")

	out, _, err := runCLI(t, env, "clip", src, "--start", "00:05", "--end", "00:10")
	if err != nil {
		t.Fatalf("clip: %v\n%s", err, out)
	}
	requireContains(t, out, "Clip saved to")

	want := filepath.Join(env.cfg.Paths.OutputDir, "match-00m05s-00m10s-1920x1080-h264.mp4")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected clip at %s: %v", want, err)
	}
}

func TestClipRejectsInvalidOptions(t *testing.T) {
	result := testsupport.ProbeResult(60, 1920, 1080, nil, nil)
	env := setupCLITestEnv(t, testsupport.WithStubbedFFmpeg(), testsupport.WithStubbedProbe(result))
	src := env.source(t, "match.mkv")

	_, _, err := runCLI(t, env, "clip", src, "--codec", "vp9", "--container", "mp4")
	if err == nil || !strings.Contains(err.Error(), "container") {
		t.Fatalf("err = %v, want container validation error", err)
	}
	entries, _ := os.ReadDir(env.cfg.Paths.OutputDir)
	if len(entries) != 0 {
		t.Fatalf("no output expected, found %v", entries)
	}
}

func TestClipReportsEncoderFailure(t *testing.T) {
	result := testsupport.ProbeResult(60, 1920, 1080, nil, nil)
	env := setupCLITestEnv(t,
		testsupport.WithStubBinary("ffmpeg", testsupport.FFmpegFailureScript),
		testsupport.WithStubbedProbe(result),
	)
	src := env.source(t, "match.mkv")

	out, _, err := runCLI(t, env, "clip", src)
	if err == nil {
		t.Fatal("expected clip to fail")
	}
	requireContains(t, out, "InvalidInput")
}

func TestStatusAndCancelAgainstDaemon(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedFFmpeg())
	mgr := workflow.NewManager(env.cfg, nil)
	d, err := daemon.New(env.cfg, nil, mgr, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon Start: %v", err)
	}
	t.Cleanup(d.Stop)

	out, _, err := runCLI(t, env, "status", "--api", d.Addr())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "idle")

	out, _, err = runCLI(t, env, "cancel", "--api", d.Addr())
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "No job is running")
}

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "status", "--api", "127.0.0.1:1")
	if err == nil || !strings.Contains(err.Error(), "clipper serve") {
		t.Fatalf("err = %v, want daemon unavailable hint", err)
	}
}
