package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
	BinDir    string `toml:"bin_dir"`
}

// Tools names the external media binaries.
type Tools struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Encoding holds the simple-mode defaults fed to the parameter resolver.
// Values use the same text form accepted on the command line.
type Encoding struct {
	Codec        string `toml:"codec"`
	CRF          string `toml:"crf"`
	FPS          string `toml:"fps"`
	AudioBitrate string `toml:"audio_bitrate"`
	Resolution   string `toml:"resolution"`
	Speed        string `toml:"speed"`
	Preset       string `toml:"preset"`
	Container    string `toml:"container"`
}

// Supervisor controls encoder process lifecycle.
type Supervisor struct {
	CancelGraceSeconds int  `toml:"cancel_grace_seconds"`
	ReadTimeoutMillis  int  `toml:"read_timeout_ms"`
	JobTimeoutSeconds  int  `toml:"job_timeout_seconds"`
	VerifyOutput       bool `toml:"verify_output"`
}

// Upload contains upload adapter settings.
type Upload struct {
	DefaultService   string `toml:"default_service"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	MaxAttempts      int    `toml:"max_attempts"`
	InitialBackoffMs int    `toml:"initial_backoff_ms"`
}

// API contains the local control API settings.
type API struct {
	Bind           string   `toml:"bind"`
	AllowedOrigins []string `toml:"allowed_origins"`
	// Token, when set, is required as "Authorization: Bearer <token>".
	Token string `toml:"token"`
}

// ProbeCache contains configuration for the ffprobe result cache.
type ProbeCache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Clipper.
//
// Configuration sections by subsystem:
//   - Paths: output, log, state and bundled binary directories
//   - Tools: ffmpeg/ffprobe executable names
//   - Encoding: defaults applied when an option is not supplied
//   - Supervisor: cancel grace period, read timeout, job timeout, verification
//   - Upload: default service, HTTP timeout and retry policy
//   - API: control API bind address and CORS origins
//   - ProbeCache: sqlite cache of ffprobe results
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Tools      Tools      `toml:"tools"`
	Encoding   Encoding   `toml:"encoding"`
	Supervisor Supervisor `toml:"supervisor"`
	Upload     Upload     `toml:"upload"`
	API        API        `toml:"api"`
	ProbeCache ProbeCache `toml:"probe_cache"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the CLI and daemon write into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.ProbeCache.Enabled && strings.TrimSpace(c.ProbeCache.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.ProbeCache.Path), 0o755); err != nil {
			return fmt.Errorf("create probe cache directory: %w", err)
		}
	}
	return nil
}

// FFmpegBinary returns the encoder executable name or path.
func (c *Config) FFmpegBinary() string {
	if v := strings.TrimSpace(c.Tools.FFmpegBinary); v != "" {
		return v
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name or path.
func (c *Config) FFprobeBinary() string {
	if v := strings.TrimSpace(c.Tools.FFprobeBinary); v != "" {
		return v
	}
	return defaultFFprobeBinary
}

// CancelGrace is the wait between the graceful signal and the forced kill.
func (c *Config) CancelGrace() time.Duration {
	return time.Duration(c.Supervisor.CancelGraceSeconds) * time.Second
}

// ReadTimeout bounds how long the supervisor waits on the diagnostic stream
// before checking for cancellation.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Supervisor.ReadTimeoutMillis) * time.Millisecond
}

// JobTimeout returns the wall-clock limit for one encode, zero when unlimited.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Supervisor.JobTimeoutSeconds) * time.Second
}

// UploadTimeout returns the per-request HTTP timeout for uploads.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Upload.TimeoutSeconds) * time.Second
}

// LockPath is the daemon's single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "clipper.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	enc := toml.NewEncoder(&b)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}
