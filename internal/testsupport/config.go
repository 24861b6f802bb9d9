package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"clipper/internal/config"
	"clipper/internal/media/ffprobe"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Output verification and the probe cache are off so tests do not need real
// media; the API binds to an ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "clips")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.BinDir = filepath.Join(base, "bin")
	cfgVal.Supervisor.VerifyOutput = false
	cfgVal.ProbeCache.Enabled = false
	cfgVal.ProbeCache.Path = filepath.Join(base, "state", "probe.db")
	cfgVal.API.Bind = "127.0.0.1:0"

	for _, dir := range []string{cfgVal.Paths.OutputDir, cfgVal.Paths.LogDir, cfgVal.Paths.StateDir, cfgVal.Paths.BinDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithStubBinary writes an executable script named name into the bundled
// binary directory, where tool resolution finds it before PATH.
func WithStubBinary(name, script string) ConfigOption {
	return func(b *configBuilder) {
		target := filepath.Join(b.cfg.Paths.BinDir, name)
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			b.t.Fatalf("write stub %s: %v", name, err)
		}
	}
}

// WithStubbedFFmpeg installs FFmpegSuccessScript as ffmpeg.
func WithStubbedFFmpeg() ConfigOption {
	return WithStubBinary("ffmpeg", FFmpegSuccessScript)
}

// WithVerifyOutput toggles post-encode verification.
func WithVerifyOutput(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Supervisor.VerifyOutput = enabled
	}
}

// WithMissingTools points both tool settings at names that cannot resolve.
func WithMissingTools() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tools.FFmpegBinary = "clipper-test-missing-ffmpeg"
		b.cfg.Tools.FFprobeBinary = "clipper-test-missing-ffprobe"
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}

// WithStubbedProbe installs an ffprobe script that reports result.
func WithStubbedProbe(result ffprobe.Result) ConfigOption {
	return WithStubBinary("ffprobe", FFprobeScript(result))
}
