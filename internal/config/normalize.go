package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTools(); err != nil {
		return err
	}
	c.normalizeEncoding()
	c.normalizeUpload()
	if err := c.normalizeProbeCache(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.BinDir, err = expandPath(strings.TrimSpace(c.Paths.BinDir)); err != nil {
		return fmt.Errorf("paths.bin_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() error {
	if value, ok := os.LookupEnv("CLIPPER_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFmpegBinary = value
	}
	if value, ok := os.LookupEnv("CLIPPER_FFPROBE"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFprobeBinary = value
	}
	c.Tools.FFmpegBinary = strings.TrimSpace(c.Tools.FFmpegBinary)
	if c.Tools.FFmpegBinary == "" {
		c.Tools.FFmpegBinary = defaultFFmpegBinary
	}
	c.Tools.FFprobeBinary = strings.TrimSpace(c.Tools.FFprobeBinary)
	if c.Tools.FFprobeBinary == "" {
		c.Tools.FFprobeBinary = defaultFFprobeBinary
	}
	var err error
	if strings.ContainsRune(c.Tools.FFmpegBinary, filepath.Separator) {
		if c.Tools.FFmpegBinary, err = expandPath(c.Tools.FFmpegBinary); err != nil {
			return fmt.Errorf("tools.ffmpeg_binary: %w", err)
		}
	}
	if strings.ContainsRune(c.Tools.FFprobeBinary, filepath.Separator) {
		if c.Tools.FFprobeBinary, err = expandPath(c.Tools.FFprobeBinary); err != nil {
			return fmt.Errorf("tools.ffprobe_binary: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeEncoding() {
	trimOr := func(value, fallback string) string {
		value = strings.TrimSpace(value)
		if value == "" {
			return fallback
		}
		return value
	}
	c.Encoding.Codec = strings.ToLower(trimOr(c.Encoding.Codec, defaultCodec))
	c.Encoding.CRF = trimOr(c.Encoding.CRF, defaultCRF)
	c.Encoding.FPS = trimOr(c.Encoding.FPS, defaultFPS)
	c.Encoding.AudioBitrate = strings.ToLower(trimOr(c.Encoding.AudioBitrate, defaultAudioBitrate))
	c.Encoding.Resolution = strings.ToLower(trimOr(c.Encoding.Resolution, defaultResolution))
	c.Encoding.Speed = trimOr(c.Encoding.Speed, defaultSpeed)
	c.Encoding.Preset = strings.ToLower(trimOr(c.Encoding.Preset, defaultPreset))
	c.Encoding.Container = strings.ToLower(trimOr(c.Encoding.Container, defaultContainer))
}

func (c *Config) normalizeUpload() {
	c.Upload.DefaultService = strings.ToLower(strings.TrimSpace(c.Upload.DefaultService))
	if c.Upload.DefaultService == "" {
		c.Upload.DefaultService = defaultUploadService
	}
	if c.Upload.TimeoutSeconds <= 0 {
		c.Upload.TimeoutSeconds = defaultUploadTimeout
	}
	if c.Upload.MaxAttempts <= 0 {
		c.Upload.MaxAttempts = defaultUploadMaxAttempts
	}
	if c.Upload.InitialBackoffMs < 0 {
		c.Upload.InitialBackoffMs = defaultUploadBackoffMs
	}
}

func (c *Config) normalizeProbeCache() error {
	if strings.TrimSpace(c.ProbeCache.Path) == "" {
		c.ProbeCache.Path = defaultProbeCachePath
	}
	var err error
	if c.ProbeCache.Path, err = expandPath(c.ProbeCache.Path); err != nil {
		return fmt.Errorf("probe_cache.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	origins := c.API.AllowedOrigins[:0]
	for _, origin := range c.API.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.API.AllowedOrigins = origins
	c.API.Token = strings.TrimSpace(c.API.Token)
	if value, ok := os.LookupEnv("CLIPPER_API_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.API.Token = strings.TrimSpace(value)
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
